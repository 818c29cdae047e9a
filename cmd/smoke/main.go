package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/tidwall/gjson"

	"github.com/fdg312/calorie-hub/internal/apiclient"
)

const (
	defaultAPIBase = "http://localhost:8080"
)

// staticCreds sends SMOKE_INIT_DATA as the Telegram identity.
type staticCreds string

func (s staticCreds) InitData() string { return string(s) }

var (
	apiBase  string
	initData string
	client   *apiclient.Client
	mealID   int64
	photoURL string
)

// minimal JPEG header, enough for content sniffing on the server
var smokeJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0xFF, 0xD9}

func main() {
	fmt.Println("=== Calorie API Smoke Test ===")
	fmt.Println()

	apiBase = getEnv("API_BASE_URL", defaultAPIBase)
	initData = getEnv("SMOKE_INIT_DATA", "")
	client = apiclient.New(apiBase, staticCreds(initData),
		apiclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))

	fmt.Printf("API Base: %s\n", apiBase)
	fmt.Printf("Init data: %s\n", maskString(initData))
	fmt.Println()

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"Healthz", testHealthz},
		{"Profile", testProfile},
		{"Add Meal", testAddMeal},
		{"Day Summary", testDaySummary},
		{"Month Summary", testMonthSummary},
		{"AI Add", testAIAdd},
		{"Upload Photo", testUploadPhoto},
		{"Download Photo", testDownloadPhoto},
		{"Coach", testCoach},
		{"Subscription Status", testSubscriptionStatus},
		{"Create Invoice", testCreateInvoice},
		{"Delete Meal", testDeleteMeal},
	}

	ctx := context.Background()
	failed := false
	for i, step := range steps {
		fmt.Printf("[%d/%d] %s... ", i+1, len(steps), step.name)
		if err := step.fn(ctx); err != nil {
			fmt.Printf("❌ FAILED\n")
			fmt.Printf("  Error: %v\n\n", err)
			failed = true
			break
		}
		fmt.Printf("✅ OK\n")
	}

	fmt.Println()
	if failed {
		fmt.Println("❌ SMOKE TEST FAILED")
		os.Exit(1)
	}

	fmt.Println("✅ ALL SMOKE TESTS PASSED")
}

func testHealthz(ctx context.Context) error {
	_, err := call(ctx, "/healthz", apiclient.Options{})
	return err
}

func testProfile(ctx context.Context) error {
	body, err := call(ctx, "/api/profile", apiclient.Options{})
	if err != nil {
		return err
	}
	if gjson.GetBytes(body, "goal").Int() <= 0 {
		return fmt.Errorf("goal missing: %s", body)
	}
	return nil
}

func testAddMeal(ctx context.Context) error {
	payload, err := apiclient.JSONBody(map[string]interface{}{
		"calories":    250,
		"description": "smoke oatmeal",
	})
	if err != nil {
		return err
	}
	_, err = call(ctx, "/api/addmeal", apiclient.Options{Method: http.MethodPost, Body: payload})
	return err
}

func testDaySummary(ctx context.Context) error {
	body, err := call(ctx, "/api/summary?period=day", apiclient.Options{})
	if err != nil {
		return err
	}

	for _, item := range gjson.GetBytes(body, "items").Array() {
		if item.Get("item").String() == "smoke oatmeal" {
			mealID = item.Get("id").Int()
		}
	}
	if mealID == 0 {
		return fmt.Errorf("added meal not listed: %s", body)
	}
	return nil
}

func testMonthSummary(ctx context.Context) error {
	body, err := call(ctx, "/api/summary?period=month", apiclient.Options{})
	if err != nil {
		return err
	}
	if gjson.GetBytes(body, "total").Int() < 250 {
		return fmt.Errorf("month total too low: %s", body)
	}
	return nil
}

func testAIAdd(ctx context.Context) error {
	payload, err := apiclient.JSONBody(map[string]string{"text": "гречка с курицей"})
	if err != nil {
		return err
	}
	body, err := call(ctx, "/api/aiadd", apiclient.Options{Method: http.MethodPost, Body: payload})
	if err != nil {
		return err
	}
	if !gjson.GetBytes(body, "items").IsArray() {
		return fmt.Errorf("items missing: %s", body)
	}
	return nil
}

func testUploadPhoto(ctx context.Context) error {
	form := apiclient.NewForm()
	if err := form.AddField("type", "dish"); err != nil {
		return err
	}
	if err := form.AddFile("file", "smoke.jpg", bytes.NewReader(smokeJPEG)); err != nil {
		return err
	}

	body, err := call(ctx, "/api/upload", apiclient.Options{Method: http.MethodPost, Body: form})
	if err != nil {
		return err
	}
	photoURL = gjson.GetBytes(body, "photo_url").String()
	if photoURL == "" {
		return fmt.Errorf("photo_url missing: %s", body)
	}
	return nil
}

func testDownloadPhoto(ctx context.Context) error {
	body, err := call(ctx, photoURL, apiclient.Options{})
	if err != nil {
		return err
	}
	if !bytes.Equal(body, smokeJPEG) {
		return fmt.Errorf("downloaded %d bytes, uploaded %d", len(body), len(smokeJPEG))
	}
	return nil
}

func testCoach(ctx context.Context) error {
	body, err := call(ctx, "/api/coach", apiclient.Options{})
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("empty coach text")
	}
	return nil
}

func testSubscriptionStatus(ctx context.Context) error {
	body, err := call(ctx, "/api/subscribe/status", apiclient.Options{})
	if err != nil {
		return err
	}
	if plan := gjson.GetBytes(body, "plan").String(); plan != "trial" && plan != "pro" {
		return fmt.Errorf("unexpected plan %q", plan)
	}
	return nil
}

func testCreateInvoice(ctx context.Context) error {
	body, err := call(ctx, "/api/subscribe/create", apiclient.Options{Method: http.MethodPost})
	if err != nil {
		return err
	}
	if gjson.GetBytes(body, "invoice_url").String() == "" {
		return fmt.Errorf("invoice_url missing: %s", body)
	}
	return nil
}

func testDeleteMeal(ctx context.Context) error {
	path := fmt.Sprintf("/api/meal/%d", mealID)
	if _, err := call(ctx, path, apiclient.Options{Method: http.MethodDelete}); err != nil {
		return err
	}
	// Deleting again must still succeed.
	_, err := call(ctx, path, apiclient.Options{Method: http.MethodDelete})
	return err
}

func call(ctx context.Context, path string, opts apiclient.Options) ([]byte, error) {
	resp, err := client.Call(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, truncate(body, 4096))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func maskString(s string) string {
	if s == "" {
		return "(anonymous)"
	}
	if len(s) <= 12 {
		return "***"
	}
	return s[:6] + "..." + s[len(s)-4:]
}
