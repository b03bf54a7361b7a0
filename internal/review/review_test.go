package review

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Suggestion
	}{
		{
			name: "bare array",
			raw:  `[{"category":"Bug","message":"off by one"}]`,
			want: []Suggestion{{Category: "Bug", Message: "off by one"}},
		},
		{
			name: "wrapped in prose",
			raw:  "Here you go:\n```json\n[{\"category\":\"Optimization\",\"message\":\"cache it\"}]\n```\nHope this helps.",
			want: []Suggestion{{Category: "Optimization", Message: "cache it"}},
		},
		{
			name: "reasoning block stripped",
			raw:  `<think>maybe [1,2] is wrong</think>[{"category":"Best Practice","message":"name things"}]`,
			want: []Suggestion{{Category: "Best Practice", Message: "name things"}},
		},
		{
			name: "empty reply",
			raw:  "",
			want: []Suggestion{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSuggestions(tt.raw)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Suggestions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSuggestionsRejectsFreeText(t *testing.T) {
	if _, err := ParseSuggestions("The code looks fine to me."); err == nil {
		t.Error("Expected error for free text")
	}
}

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Missing bearer token, got %q", r.Header.Get("Authorization"))
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("Unexpected request: %+v", req)
		}
		if len(req.Messages) == 1 && !strings.HasSuffix(req.Messages[0].Content, "print(1)") {
			t.Error("Prompt should end with the code under review")
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
}

func TestReviewSuccess(t *testing.T) {
	srv := completionServer(t, http.StatusOK, `[{"category":"Bug","message":"x is undefined"}]`)
	defer srv.Close()

	c := New(srv.URL, "test-model", "test-key", srv.Client())
	got, err := c.Review(context.Background(), "print(1)")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []Suggestion{{Category: "Bug", Message: "x is undefined"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Suggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestReviewMalformedReplyFallsBack(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "I think the code is great, no issues!")
	defer srv.Close()

	c := New(srv.URL, "test-model", "test-key", srv.Client())
	got, err := c.Review(context.Background(), "print(1)")
	if err != nil {
		t.Fatalf("Malformed reply should not fail the request: %v", err)
	}
	if len(got) != 1 || got[0].Category != CategoryGeneral {
		t.Errorf("Expected one General suggestion, got %+v", got)
	}
}

func TestReviewUpstreamFailure(t *testing.T) {
	srv := completionServer(t, http.StatusBadGateway, "")
	defer srv.Close()

	c := New(srv.URL, "test-model", "test-key", srv.Client())
	if _, err := c.Review(context.Background(), "print(1)"); !errors.Is(err, ErrUpstream) {
		t.Errorf("Expected ErrUpstream, got %v", err)
	}

	unreachable := New("http://127.0.0.1:1", "test-model", "test-key", nil)
	if _, err := unreachable.Review(context.Background(), "print(1)"); !errors.Is(err, ErrUpstream) {
		t.Errorf("Expected ErrUpstream for unreachable endpoint, got %v", err)
	}
}
