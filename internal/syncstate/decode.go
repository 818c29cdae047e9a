package syncstate

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/fdg312/calorie-hub/internal/ring"
)

var errNotJSON = errors.New("body is not valid JSON")

func succeeded(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// drain discards and closes a body whose content is not needed.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func readBody(resp *http.Response, path string) ([]byte, error) {
	defer resp.Body.Close()
	if !succeeded(resp) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Path: path, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// readAnyBody reads the body whatever the status.
func readAnyBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func readJSON(resp *http.Response, path string) (gjson.Result, error) {
	body, err := readBody(resp, path)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &DecodeError{Path: path, Err: errNotJSON}
	}
	return gjson.ParseBytes(body), nil
}

// present reports a field that exists and is not null.
func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

type daySummary struct {
	total     int
	remaining int
	meals     []Meal
}

// parseDay is lenient: missing fields take their defaults and the remaining
// fallback is derived from goal.
func parseDay(r gjson.Result, goal int) daySummary {
	d := daySummary{
		total: int(r.Get("total").Int()),
		meals: []Meal{},
	}
	d.remaining = ring.Remaining(goal, d.total)
	if v := r.Get("remaining"); present(v) {
		d.remaining = int(v.Int())
	}
	r.Get("items").ForEach(func(_, item gjson.Result) bool {
		d.meals = append(d.meals, Meal{
			ID:   item.Get("id").Int(),
			Time: item.Get("time").String(),
			Kcal: int(item.Get("kcal").Int()),
			Item: item.Get("item").String(),
		})
		return true
	})
	return d
}

// decodeEstimate is strict: the body must be an estimate object.
func decodeEstimate(body []byte, path string) (*AIEstimate, error) {
	var est AIEstimate
	if err := json.Unmarshal(body, &est); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	r := gjson.ParseBytes(body)
	if !r.IsObject() || !r.Get("items").IsArray() || !present(r.Get("total_kcal")) {
		return nil, &DecodeError{Path: path, Err: errors.New("want {items, total_kcal}")}
	}
	if est.Items == nil {
		est.Items = []AIItem{}
	}
	return &est, nil
}
