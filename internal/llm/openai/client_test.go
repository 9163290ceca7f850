package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nexira/internal/config"
	"nexira/internal/llm"
)

func TestChat_ServerReturnsChoice(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello","tool_calls":[]}}]}`))
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := config.OpenAIConfig{APIKey: "test", BaseURL: srv.URL, Model: "m"}
	cli := New(c, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := cli.Chat(ctx, []llm.Message{{Role: "user", Content: "hi"}}, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Content != "hello" {
		t.Fatalf("expected hello, got %q", msg.Content)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if firstNonEmpty("", "a", "b") != "a" {
		t.Fatalf("unexpected firstNonEmpty")
	}
}

func TestIsEmptyArgs(t *testing.T) {
	cases := map[string]bool{
		"":        true,
		"   ":     true,
		"{}":      true,
		`{"a":1}`: false,
	}
	for in, want := range cases {
		if got := isEmptyArgs(in); got != want {
			t.Errorf("isEmptyArgs(%q) = %v, want %v", in, got, want)
		}
	}
}

type testStreamHandler struct {
	deltas []string
	calls  []llm.ToolCall
}

func (h *testStreamHandler) OnDelta(content string) { h.deltas = append(h.deltas, content) }
func (h *testStreamHandler) OnToolCall(tc llm.ToolCall) { h.calls = append(h.calls, tc) }

func TestChatStream_DeltasAndToolCalls(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"he"},"finish_reason":null}]}` + "\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"llo"},"finish_reason":"stop"}]}` + "\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
		_, _ = w.Write([]byte(`data: {"choices":[],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}` + "\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := config.OpenAIConfig{APIKey: "test", BaseURL: srv.URL, Model: "m"}
	cli := New(c, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	handler := &testStreamHandler{}
	if err := cli.ChatStream(ctx, []llm.Message{{Role: "user", Content: "hi"}}, nil, "", handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(handler.deltas) != 2 || handler.deltas[0]+handler.deltas[1] != "hello" {
		t.Fatalf("unexpected deltas: %+v", handler.deltas)
	}
}
