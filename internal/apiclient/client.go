// Package apiclient calls the voice web UI server over HTTP. A Client satisfies the session package's
// SignedURLSource, Transcript and TextCompleter interfaces, so a session controller can run against a remote
// server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MegaGrindStone/voice-web-ui/internal/models"
	"github.com/tidwall/gjson"
)

// Client is an HTTP client of the server API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Error is returned when the server answers with a non-2xx status.
type Error struct {
	StatusCode int
	Message    string
}

// New creates a Client for the server at baseURL.
func New(baseURL string) Client {
	return Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// SignedURL asks the server for a signed vendor connection URL using the server's configured credentials.
func (c Client) SignedURL(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/i", struct{}{})
	if err != nil {
		return "", err
	}

	signed := gjson.GetBytes(body, "signed_url").String()
	if signed == "" {
		return "", fmt.Errorf("signed_url missing from response")
	}
	return signed, nil
}

// Append stores item in the transcript of conversationID.
func (c Client) Append(ctx context.Context, conversationID string, item models.Item) error {
	payload := struct {
		ID   string      `json:"id"`
		Item models.Item `json:"item"`
	}{
		ID:   conversationID,
		Item: item,
	}
	_, err := c.do(ctx, http.MethodPost, "/api/c", payload)
	return err
}

// Records lists the transcript of conversationID in sequence order.
func (c Client) Records(ctx context.Context, conversationID string) ([]models.Record, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/c?id="+url.QueryEscape(conversationID), nil)
	if err != nil {
		return nil, err
	}

	var records []models.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("error decoding records: %w", err)
	}
	return records, nil
}

// Complete sends message through the text chat endpoint and returns the answer.
func (c Client) Complete(ctx context.Context, message string) (string, error) {
	payload := struct {
		Message string `json:"message"`
	}{
		Message: message,
	}
	body, err := c.do(ctx, http.MethodPost, "/api/text", payload)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "response").String(), nil
}

func (c Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    gjson.GetBytes(body, "error").String(),
		}
	}
	return body, nil
}
