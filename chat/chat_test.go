package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeModel serves the OpenAI-compatible completion endpoint and records the
// last request it saw.
type fakeModel struct {
	status  int
	content string

	lastModel    string
	lastMessages []map[string]string
}

func (f *fakeModel) handler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.lastModel = req.Model
	f.lastMessages = nil
	for _, m := range req.Messages {
		f.lastMessages = append(f.lastMessages, map[string]string{"role": m.Role, "content": m.Content})
	}

	if f.status != 0 && f.status != http.StatusOK {
		http.Error(w, "model unavailable", f.status)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": f.content}},
		},
	})
}

func testClient(t *testing.T, f *fakeModel) *Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(ts.Close)
	return New("test-key", ts.URL+"/v1", "test-model")
}

func TestRespond(t *testing.T) {
	f := &fakeModel{content: "I'll open example.com for you."}
	c := testClient(t, f)

	got, err := c.Respond(context.Background(), "open example.com", "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "I'll open example.com for you." {
		t.Errorf("response = %q", got)
	}
	if f.lastModel != "test-model" {
		t.Errorf("model = %q", f.lastModel)
	}
	if len(f.lastMessages) != 2 || f.lastMessages[0]["role"] != "system" {
		t.Fatalf("messages = %v, want system+user", f.lastMessages)
	}
	if f.lastMessages[1]["content"] != "open example.com" {
		t.Errorf("user message = %q", f.lastMessages[1]["content"])
	}
}

func TestRespondAppendsContext(t *testing.T) {
	f := &fakeModel{content: "ok"}
	c := testClient(t, f)

	if _, err := c.Respond(context.Background(), "what is this page?", "currently on https://example.com"); err != nil {
		t.Fatal(err)
	}
	user := f.lastMessages[1]["content"]
	if !strings.Contains(user, "what is this page?") || !strings.Contains(user, "Context: currently on https://example.com") {
		t.Errorf("user message = %q", user)
	}
}

func TestRespondEmptyMessage(t *testing.T) {
	c := testClient(t, &fakeModel{content: "ok"})
	if _, err := c.Respond(context.Background(), "   ", ""); err == nil {
		t.Error("empty message accepted")
	}
}

func TestRespondUpstreamError(t *testing.T) {
	f := &fakeModel{status: http.StatusServiceUnavailable}
	c := testClient(t, f)

	if _, err := c.Respond(context.Background(), "hello", ""); err == nil {
		t.Error("upstream failure not surfaced")
	}
}

func TestDefaults(t *testing.T) {
	c := New("key", "", "")
	if c.model != DefaultModel {
		t.Errorf("model = %q, want %q", c.model, DefaultModel)
	}
}
