package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/fdg312/calorie-hub/internal/config"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

const (
	estimatePrompt = "Ты нутрициолог. Разбивай свободный текст на блюда с порциями и калориями. " +
		"Возвращай JSON:{\"items\":[{\"name\":\"str\",\"grams\":int,\"kcal\":int}],\"total_kcal\":int}."

	coachPrompt = "Ты дружелюбный фитнес-коуч. Дай 3–5 конкретных советов и 2 замены, учитывая цель и недавний рацион."

	analyzePrompt = "Ты нутрициолог. Коротко разбери рацион за день: баланс, самый калорийный приём, что поправить завтра."

	jsonOnlyPrompt = "Всегда возвращай только валидный JSON."

	receiptPrompt = "Это фото кассового чека. Извлеки дату, время и позиции. " +
		"Верни JSON:{\"date\":\"YYYY-MM-DD\",\"time\":\"HH:mm\",\"items\":[{\"name\":\"str\",\"grams\":int?,\"kcal\":int?}]}"

	dishPrompt = "Это фото блюда. Определи 1-3 блюда/компонента, оцени граммы и калории. " +
		"Верни JSON:{\"items\":[{\"name\":\"str\",\"grams\":int,\"kcal\":int}]}"
)

type OpenAIProvider struct {
	baseURL     string
	apiKey      string
	model       string
	visionModel string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

func NewOpenAIProvider(cfg *config.Config) *OpenAIProvider {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}
	visionModel := cfg.OpenAIVisionModel
	if visionModel == "" {
		visionModel = cfg.OpenAIModel
	}

	return &OpenAIProvider{
		baseURL:     defaultOpenAIBase,
		apiKey:      cfg.OpenAIAPIKey,
		model:       cfg.OpenAIModel,
		visionModel: visionModel,
		maxTokens:   cfg.AIMaxOutputTokens,
		temperature: cfg.AITemperature,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

// Estimate falls back to echoing the text when the model answer is not
// usable JSON. Transport and status errors are returned as is.
func (p *OpenAIProvider) Estimate(ctx context.Context, text string) (Estimate, error) {
	content, err := p.complete(ctx, p.model, []chatMessageRequest{
		{Role: "system", Content: estimatePrompt},
		{Role: "user", Content: text},
	})
	if err != nil {
		return Estimate{}, err
	}

	raw := stripCodeFence(content)
	if !gjson.Valid(raw) || !gjson.Get(raw, "items").IsArray() {
		return fallbackEstimate(text), nil
	}
	parsed := gjson.Parse(raw)
	est := Estimate{Items: parseItems(parsed.Get("items"), "")}
	total := parsed.Get("total_kcal")
	est.TotalKcal = int(total.Int())
	return est.normalize(total.Exists()), nil
}

func (p *OpenAIProvider) ParsePhoto(ctx context.Context, kind string, image []byte) (PhotoResult, error) {
	prompt := dishPrompt
	if kind == PhotoReceipt {
		prompt = receiptPrompt
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(image), base64.StdEncoding.EncodeToString(image))

	content, err := p.complete(ctx, p.visionModel, []chatMessageRequest{
		{Role: "system", Content: jsonOnlyPrompt},
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		}},
	})
	if err != nil {
		return PhotoResult{}, err
	}

	raw := stripCodeFence(content)
	if !gjson.Valid(raw) {
		return fallbackPhoto(), nil
	}
	parsed := gjson.Parse(raw)
	return PhotoResult{
		Date:  parsed.Get("date").String(),
		Time:  parsed.Get("time").String(),
		Items: parseItems(parsed.Get("items"), "Блюдо"),
	}, nil
}

func (p *OpenAIProvider) Coach(ctx context.Context, day DaySnapshot) (string, error) {
	return p.complete(ctx, p.model, []chatMessageRequest{
		{Role: "system", Content: coachPrompt},
		{Role: "user", Content: describeDay(day)},
	})
}

func (p *OpenAIProvider) AnalyzeDay(ctx context.Context, day DaySnapshot) (string, error) {
	return p.complete(ctx, p.model, []chatMessageRequest{
		{Role: "system", Content: analyzePrompt},
		{Role: "user", Content: describeDay(day)},
	})
}

func (p *OpenAIProvider) complete(ctx context.Context, model string, messages []chatMessageRequest) (string, error) {
	requestPayload := chatCompletionsRequest{
		Model:       model,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		Messages:    messages,
	}

	body, err := json.Marshal(requestPayload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai request failed with status %d", resp.StatusCode)
	}

	var parsed chatCompletionsResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response does not contain choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func describeDay(day DaySnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Дата: %s. Цель: %d ккал. Съедено: %d ккал.\n", day.Date, day.Goal, day.Total)
	for _, m := range day.Meals {
		fmt.Fprintf(&b, "- %s: %d ккал\n", m.Name, m.Kcal)
	}
	return b.String()
}

// parseItems reads items leniently: numbers may arrive as floats or strings.
func parseItems(arr gjson.Result, defaultName string) []Item {
	items := make([]Item, 0)
	arr.ForEach(func(_, it gjson.Result) bool {
		name := it.Get("name").String()
		if name == "" {
			name = defaultName
		}
		items = append(items, Item{
			Name:  truncate(name, maxNameLen),
			Grams: int(it.Get("grams").Int()),
			Kcal:  int(it.Get("kcal").Int()),
		})
		return true
	})
	return items
}

// stripCodeFence unwraps ```json ... ``` answers.
func stripCodeFence(content string) string {
	raw := strings.TrimSpace(content)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.Trim(raw, "`")
	if strings.HasPrefix(strings.ToLower(raw), "json") {
		raw = raw[4:]
	}
	return strings.TrimSpace(raw)
}

type chatCompletionsRequest struct {
	Model       string               `json:"model"`
	Messages    []chatMessageRequest `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
}

// chatMessageRequest.Content is a string or a []contentPart.
type chatMessageRequest struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
