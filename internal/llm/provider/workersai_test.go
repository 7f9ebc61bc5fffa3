package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWorkersAICreateCompletion(t *testing.T) {
	var gotPath string
	var gotBody workersAIRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("unexpected authorization header: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		fmt.Fprint(w, `{"result":{"response":"hello from the model"},"success":true,"errors":[]}`)
	}))
	defer server.Close()

	p := NewWorkersAIProvider("test-token", "acct-123", server.URL)

	resp, err := p.CreateCompletion(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "be helpful"},
			{Role: "user", Content: "hi"},
		},
		MaxTokens:   256,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}

	if resp.Content != "hello from the model" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	wantPath := "/accounts/acct-123/ai/run/" + DefaultWorkersAIModel
	if gotPath != wantPath {
		t.Errorf("expected path %q, got %q", wantPath, gotPath)
	}
	if gotBody.Stream {
		t.Error("expected stream to be false")
	}
	if len(gotBody.Messages) != 2 {
		t.Errorf("expected 2 messages in request, got %d", len(gotBody.Messages))
	}
	if gotBody.MaxTokens != 256 {
		t.Errorf("expected max_tokens 256, got %d", gotBody.MaxTokens)
	}
}

func TestWorkersAIModelOverride(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"result":{"response":"ok"},"success":true}`)
	}))
	defer server.Close()

	p := NewWorkersAIProvider("tok", "acct", server.URL)
	_, err := p.CreateCompletion(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Model:    "@cf/meta/llama-2-7b-chat-int8",
	})
	if err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}
	if gotPath != "/accounts/acct/ai/run/@cf/meta/llama-2-7b-chat-int8" {
		t.Errorf("unexpected path: %q", gotPath)
	}
}

func TestWorkersAIAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false,"errors":[{"code":10000,"message":"Authentication error"}]}`)
	}))
	defer server.Close()

	p := NewWorkersAIProvider("bad-token", "acct", server.URL)
	_, err := p.CreateCompletion(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if provErr.Code != ErrorCodeAuthentication {
		t.Errorf("expected code %q, got %q", ErrorCodeAuthentication, provErr.Code)
	}
	if provErr.IsRetryable {
		t.Error("authentication errors must not be retryable")
	}
}

func TestWorkersAIUnsuccessfulResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"response":""},"success":false,"errors":[{"code":5006,"message":"model error"}]}`)
	}))
	defer server.Close()

	p := NewWorkersAIProvider("tok", "acct", server.URL)
	_, err := p.CreateCompletion(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for unsuccessful result")
	}

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if provErr.Message != "model error" {
		t.Errorf("expected upstream message, got %q", provErr.Message)
	}
}

func TestWorkersAIRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"result":{"response":"recovered"},"success":true}`)
	}))
	defer server.Close()

	p := NewWorkersAIProvider("tok", "acct", server.URL)
	resp, err := p.CreateCompletion(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("CreateCompletion failed after retry: %v", err)
	}
	if resp.Content != "recovered" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}
