package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ElevenLabs issues short-lived signed websocket URLs for the ElevenLabs Conversational AI API. The signed
// URL lets the browser open a single voice session without ever seeing the long-lived API key.
type ElevenLabs struct {
	endpoint string
	agentID  string
	apiKey   string

	client *http.Client
}

// UpstreamError is returned when the vendor answers with a non-success status.
type UpstreamError struct {
	StatusCode int
	Status     string
}

const (
	elevenLabsAPIEndpoint = "https://api.elevenlabs.io"
	signedURLPath         = "/v1/convai/conversation/get_signed_url"
)

// ErrConfiguration is returned when neither the request nor the process configuration provides a required
// credential.
var ErrConfiguration = errors.New("configuration error")

// NewElevenLabs creates an issuer with default credentials, usually sourced from the environment. An empty
// endpoint selects the public ElevenLabs API.
func NewElevenLabs(endpoint, agentID, apiKey string) ElevenLabs {
	if endpoint == "" {
		endpoint = elevenLabsAPIEndpoint
	}
	return ElevenLabs{
		endpoint: strings.TrimRight(endpoint, "/"),
		agentID:  agentID,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *UpstreamError) Error() string {
	if e.Status != "" {
		return e.Status
	}
	return http.StatusText(e.StatusCode)
}

// SignedURL requests a signed connection URL for the agent. Non-empty agentID and apiKey take precedence
// over the configured defaults.
func (e ElevenLabs) SignedURL(ctx context.Context, agentID, apiKey string) (string, error) {
	if agentID == "" {
		agentID = e.agentID
	}
	if apiKey == "" {
		apiKey = e.apiKey
	}
	if agentID == "" {
		return "", fmt.Errorf("%w: ELEVENLABS_AGENT_ID is not set or received", ErrConfiguration)
	}
	if apiKey == "" {
		return "", fmt.Errorf("%w: ELEVENLABS_API_KEY is not set or received", ErrConfiguration)
	}

	u, err := url.Parse(e.endpoint + signedURLPath)
	if err != nil {
		return "", fmt.Errorf("error parsing endpoint: %w", err)
	}
	q := u.Query()
	q.Set("agent_id", agentID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("xi-api-key", apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Status carries the code prefix ("401 Unauthorized"); only the text is reported.
		status := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
		return "", &UpstreamError{StatusCode: resp.StatusCode, Status: status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	signed := gjson.GetBytes(body, "signed_url")
	if !signed.Exists() || signed.String() == "" {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Status: "signed_url missing from response"}
	}

	return signed.String(), nil
}
