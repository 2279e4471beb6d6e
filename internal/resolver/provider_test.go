package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"orderbot_backend/platform/config"
)

func tokenEndpoint(t *testing.T, calls *atomic.Int32) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("oauth method = %s, want POST", r.Method)
		}
		if r.Header.Get("Authorization") != "Basic test-key" {
			t.Errorf("oauth auth header = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("RqUID") == "" {
			t.Error("oauth request missing RqUID")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_at":%d}`,
			calls.Load(), time.Now().Add(20*time.Minute).UnixMilli())
	}
}

func completionBody(content string) string {
	payload := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func newTestProvider(t *testing.T, oauthURL, baseURL string) *ProviderClient {
	t.Helper()
	cfg := config.ProviderConfig{
		Name:     "primary",
		AuthKey:  "test-key",
		OAuthURL: oauthURL,
		Scope:    "API_PERS",
		BaseURL:  baseURL,
		Model:    "test-model",
		Timeout:  2 * time.Second,
	}
	return NewProviderClient(cfg, NewTokenCache(nil, testLogger()), testLogger())
}

func TestExtractSuccess(t *testing.T) {
	var tokenCalls atomic.Int32
	oauth := httptest.NewServer(tokenEndpoint(t, &tokenCalls))
	defer oauth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, completionBody(`[{"title":"Труба ПВХ 20мм","qty":2},{"title":"Кран шаровой"}]`))
	}))
	defer api.Close()

	client := newTestProvider(t, oauth.URL, api.URL)

	candidates, err := client.Extract(context.Background(), "2 трубы пвх, кран")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []Candidate{
		{Title: "Труба ПВХ 20мм", Qty: 2},
		{Title: "Кран шаровой", Qty: 1},
	}
	if len(candidates) != len(want) {
		t.Fatalf("candidates = %v, want %v", candidates, want)
	}
	for i := range want {
		if candidates[i] != want[i] {
			t.Errorf("candidate %d = %+v, want %+v", i, candidates[i], want[i])
		}
	}
	if tokenCalls.Load() != 1 {
		t.Fatalf("token exchanged %d times, want 1", tokenCalls.Load())
	}
}

func TestExtractRetriesOnceOnAuthRejection(t *testing.T) {
	var tokenCalls, apiCalls atomic.Int32
	oauth := httptest.NewServer(tokenEndpoint(t, &tokenCalls))
	defer oauth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, completionBody(`[{"title":"Кран","qty":1}]`))
	}))
	defer api.Close()

	client := newTestProvider(t, oauth.URL, api.URL)

	candidates, err := client.Extract(context.Background(), "кран")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Title != "Кран" {
		t.Fatalf("candidates = %v", candidates)
	}
	if tokenCalls.Load() != 2 {
		t.Fatalf("token exchanged %d times, want 2 (initial + refresh)", tokenCalls.Load())
	}
	if apiCalls.Load() != 2 {
		t.Fatalf("completion called %d times, want 2", apiCalls.Load())
	}
}

func TestExtractSecondAuthRejectionFails(t *testing.T) {
	var tokenCalls atomic.Int32
	oauth := httptest.NewServer(tokenEndpoint(t, &tokenCalls))
	defer oauth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer api.Close()

	client := newTestProvider(t, oauth.URL, api.URL)

	_, err := client.Extract(context.Background(), "кран")
	if !errors.Is(err, ErrProviderAuth) {
		t.Fatalf("err = %v, want ErrProviderAuth", err)
	}
	if tokenCalls.Load() != 2 {
		t.Fatalf("token exchanged %d times, want exactly 2", tokenCalls.Load())
	}
}

func TestExtractServerErrorIsUnavailable(t *testing.T) {
	var tokenCalls atomic.Int32
	oauth := httptest.NewServer(tokenEndpoint(t, &tokenCalls))
	defer oauth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer api.Close()

	client := newTestProvider(t, oauth.URL, api.URL)

	_, err := client.Extract(context.Background(), "кран")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestExtractExchangeFailure(t *testing.T) {
	oauth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer oauth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("completion endpoint must not be reached without a token")
	}))
	defer api.Close()

	client := newTestProvider(t, oauth.URL, api.URL)

	_, err := client.Extract(context.Background(), "кран")
	if !errors.Is(err, ErrAuthExchange) {
		t.Fatalf("err = %v, want ErrAuthExchange", err)
	}
}

func TestExtractUnconfigured(t *testing.T) {
	cfg := config.ProviderConfig{Name: "secondary"}
	client := NewProviderClient(cfg, NewTokenCache(nil, testLogger()), testLogger())

	if client.Configured() {
		t.Fatal("provider without auth key reports configured")
	}
	if _, err := client.Extract(context.Background(), "кран"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestParseCompletion(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []Candidate
		wantErr error
	}{
		{
			name: "plain array",
			body: completionBody(`[{"title":"Труба","qty":3}]`),
			want: []Candidate{{Title: "Труба", Qty: 3}},
		},
		{
			name: "fenced code block",
			body: completionBody("```json\n[{\"title\":\"Труба\",\"qty\":3}]\n```"),
			want: []Candidate{{Title: "Труба", Qty: 3}},
		},
		{
			name: "prose around the array",
			body: completionBody(`Вот результат: [{"title":"Труба"}] надеюсь помог`),
			want: []Candidate{{Title: "Труба", Qty: 1}},
		},
		{
			name: "alias keys name and quantity",
			body: completionBody(`[{"name":"Кран","quantity":2}]`),
			want: []Candidate{{Title: "Кран", Qty: 2}},
		},
		{
			name: "invalid items dropped, valid kept",
			body: completionBody(`[{"qty":5},{"title":"Кран"},"мусор"]`),
			want: []Candidate{{Title: "Кран", Qty: 1}},
		},
		{
			name: "negative qty defaults to one",
			body: completionBody(`[{"title":"Кран","qty":-2}]`),
			want: []Candidate{{Title: "Кран", Qty: 1}},
		},
		{
			name:    "no array in content",
			body:    completionBody("не могу разобрать заказ"),
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "every item unusable",
			body:    completionBody(`[{"qty":1},{"foo":"bar"}]`),
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "no choices",
			body:    `{"choices":[]}`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "not json at all",
			body:    "<html>502</html>",
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "empty array loses the input",
			body:    completionBody(`[]`),
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCompletion([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCompletion: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("candidates = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("candidate %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
