package services_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/MegaGrindStone/voice-web-ui/internal/services"
	"github.com/stretchr/testify/require"
)

type vendorRequest struct {
	Method string
	URL    *url.URL
	Header http.Header
}

func vendorServer(t *testing.T, status int, body string) (*httptest.Server, *vendorRequest) {
	t.Helper()

	got := &vendorRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Method = r.Method
		got.URL = r.URL
		got.Header = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestElevenLabsSignedURL(t *testing.T) {
	srv, got := vendorServer(t, http.StatusOK, `{"signed_url":"wss://api.elevenlabs.io/v1/convai/conversation?token=t1"}`)

	issuer := services.NewElevenLabs(srv.URL, "default-agent", "default-key")
	signed, err := issuer.SignedURL(context.Background(), "", "")
	require.NoError(t, err)
	require.Equal(t, "wss://api.elevenlabs.io/v1/convai/conversation?token=t1", signed)

	require.Equal(t, http.MethodGet, got.Method)
	require.Equal(t, "/v1/convai/conversation/get_signed_url", got.URL.Path)
	require.Equal(t, "default-agent", got.URL.Query().Get("agent_id"))
	require.Equal(t, "default-key", got.Header.Get("xi-api-key"))
}

func TestElevenLabsSignedURLOverrides(t *testing.T) {
	srv, got := vendorServer(t, http.StatusOK, `{"signed_url":"wss://signed"}`)

	issuer := services.NewElevenLabs(srv.URL, "default-agent", "default-key")
	_, err := issuer.SignedURL(context.Background(), "other-agent", "other-key")
	require.NoError(t, err)

	require.Equal(t, "other-agent", got.URL.Query().Get("agent_id"))
	require.Equal(t, "other-key", got.Header.Get("xi-api-key"))
}

func TestElevenLabsSignedURLConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		agentID string
		apiKey  string
		wantMsg string
	}{
		{name: "no agent", apiKey: "key", wantMsg: "configuration error: ELEVENLABS_AGENT_ID is not set or received"},
		{name: "no key", agentID: "agent", wantMsg: "configuration error: ELEVENLABS_API_KEY is not set or received"},
		{name: "nothing", wantMsg: "configuration error: ELEVENLABS_AGENT_ID is not set or received"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := services.NewElevenLabs("http://127.0.0.1:0", tt.agentID, tt.apiKey)
			_, err := issuer.SignedURL(context.Background(), "", "")
			require.ErrorIs(t, err, services.ErrConfiguration)
			require.EqualError(t, err, tt.wantMsg)
		})
	}
}

func TestElevenLabsSignedURLUpstreamError(t *testing.T) {
	srv, _ := vendorServer(t, http.StatusUnauthorized, `{"detail":"invalid api key"}`)

	issuer := services.NewElevenLabs(srv.URL, "agent", "bad-key")
	_, err := issuer.SignedURL(context.Background(), "", "")

	var upErr *services.UpstreamError
	require.True(t, errors.As(err, &upErr))
	require.Equal(t, http.StatusUnauthorized, upErr.StatusCode)
	require.Equal(t, "Unauthorized", upErr.Error())
}

func TestElevenLabsSignedURLMissingField(t *testing.T) {
	srv, _ := vendorServer(t, http.StatusOK, `{"something_else":true}`)

	issuer := services.NewElevenLabs(srv.URL, "agent", "key")
	_, err := issuer.SignedURL(context.Background(), "", "")

	var upErr *services.UpstreamError
	require.ErrorAs(t, err, &upErr)
}
