package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MegaGrindStone/voice-web-ui/internal/handlers"
	"github.com/MegaGrindStone/voice-web-ui/internal/services"
	"github.com/stretchr/testify/require"
)

var (
	_ handlers.Responder       = services.Echo{}
	_ handlers.Responder       = services.Ollama{}
	_ handlers.Responder       = services.OpenAI{}
	_ handlers.Responder       = services.Anthropic{}
	_ handlers.SignedURLIssuer = services.ElevenLabs{}
)

func TestEcho(t *testing.T) {
	resp, err := services.Echo{}.Respond(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, `I received your message: "hello". This is a text-based response. `+
		`For voice interaction, please use the voice button.`, resp)
}

func TestAnthropicRespond(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"Lights ", "are ", "on."} {
			fmt.Fprintf(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":%q}}\n\n", chunk)
		}
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	a := services.NewAnthropic(srv.URL, "test-key", "claude-test", "be brief", 256)
	resp, err := a.Respond(context.Background(), "turn on the lights")
	require.NoError(t, err)
	require.Equal(t, "Lights are on.", resp)
	require.Equal(t, "be brief", gotReq["system"])
	require.Equal(t, true, gotReq["stream"])
}

func TestAnthropicRespondError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer srv.Close()

	a := services.NewAnthropic(srv.URL, "k", "m", "", 16)
	_, err := a.Respond(context.Background(), "hi")
	require.ErrorContains(t, err, "overloaded_error")
}

func TestOpenAIRespond(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[`+
			`{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Done."}}]}`)
	}))
	defer srv.Close()

	o := services.NewOpenAI("k", srv.URL, "gpt-test", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	resp, err := o.Respond(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "Done.", resp)
}

func TestOllamaRespond(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"llama","message":{"role":"assistant","content":"Hello there."},"done":true}`)
	}))
	defer srv.Close()

	o, err := services.NewOllama(srv.URL, "llama", "")
	require.NoError(t, err)
	resp, err := o.Respond(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "Hello there.", resp)
}
