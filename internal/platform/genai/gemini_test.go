package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/domain/assistant"
)

func sseChunk(text string) string {
	return fmt.Sprintf("data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":%q}]}}]}\r\n\r\n", text)
}

func collect(t *testing.T, ch <-chan assistant.Fragment) ([]string, error) {
	t.Helper()
	var parts []string
	var err error
	for f := range ch {
		if f.Err != nil {
			err = f.Err
			continue
		}
		parts = append(parts, f.Text)
	}
	return parts, err
}

func TestCreateSession_NoKey(t *testing.T) {
	c := NewClient(Config{}, zerolog.Nop())
	if _, err := c.CreateSession(context.Background(), "sys", "ctx"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendStream_Fragments(t *testing.T) {
	var requests []generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.5-flash:streamGenerateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("expected alt=sse")
		}
		if r.Header.Get("x-goog-api-key") != "key" {
			t.Errorf("expected api key header")
		}
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		requests = append(requests, req)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, s := range []string{"Ibuprofen ", "is typically ", "200-400mg."} {
			fmt.Fprint(w, sseChunk(s))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"}, zerolog.Nop())
	conv, err := c.CreateSession(context.Background(), "You are an assistant.", "You are assisting Gregory House.")
	if err != nil {
		t.Fatal(err)
	}

	ch, err := conv.SendStream(context.Background(), "dose?")
	if err != nil {
		t.Fatal(err)
	}
	parts, err := collect(t, ch)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if strings.Join(parts, "") != "Ibuprofen is typically 200-400mg." || len(parts) != 3 {
		t.Errorf("unexpected fragments %q", parts)
	}

	want := "You are an assistant.\nYou are assisting Gregory House."
	if got := requests[0].SystemInstruction.Parts[0].Text; got != want {
		t.Errorf("unexpected system instruction %q", got)
	}

	ch, _ = conv.SendStream(context.Background(), "and for children?")
	collect(t, ch)
	if n := len(requests[1].Contents); n != 3 {
		t.Fatalf("expected history of 3 contents, got %d", n)
	}
	if requests[1].Contents[1].Role != "model" || requests[1].Contents[1].Parts[0].Text != "Ibuprofen is typically 200-400mg." {
		t.Errorf("unexpected history %+v", requests[1].Contents)
	}
}

func TestSendStream_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"}, zerolog.Nop())
	conv, _ := c.CreateSession(context.Background(), "sys", "")
	_, err := conv.SendStream(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "Resource exhausted") {
		t.Errorf("expected upstream message in error, got %v", err)
	}
}

func TestSendStream_MidStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Partial"))
		fmt.Fprint(w, "data: {\"error\":{\"code\":500,\"message\":\"internal\"}}\n\n")
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"}, zerolog.Nop())
	conv, _ := c.CreateSession(context.Background(), "sys", "")
	ch, err := conv.SendStream(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	parts, err := collect(t, ch)
	if len(parts) != 1 || err == nil {
		t.Errorf("expected one fragment then an error, got %q %v", parts, err)
	}

	cv := conv.(*conversation)
	if len(cv.history) != 0 {
		t.Error("failed exchange must not enter history")
	}
}

func TestScanEvents_SkipsComments(t *testing.T) {
	input := ": keep-alive\n\nevent: message\n" + sseChunk("a") + "data: [DONE]\n"
	var got []string
	err := scanEvents(strings.NewReader(input), func(c generateChunk) error {
		got = append(got, chunkText(c))
		return nil
	})
	if err != nil || len(got) != 1 || got[0] != "a" {
		t.Errorf("unexpected result %v %v", got, err)
	}
}
