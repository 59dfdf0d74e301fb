// Package notifications sends transactional e-mail through the Brevo SMTP API.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

var (
	ErrNotConfigured = errors.New("brevo client not configured")
	ErrEmptyMessage  = errors.New("message needs a recipient, subject and body")
)

// APIError is a non-2xx answer from Brevo.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brevo: status=%d body=%s", e.Status, e.Body)
}

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Message is one transactional mail. Tags show up in the Brevo logs.
type Message struct {
	To      []Recipient
	Subject string
	HTML    string
	Tags    []string
}

type Option func(*BrevoClient)

// WithEndpoint points the client at another Brevo-compatible endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *BrevoClient) {
		if strings.TrimSpace(endpoint) != "" {
			c.endpoint = endpoint
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *BrevoClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

type BrevoClient struct {
	apiKey     string
	sender     Recipient
	sandbox    bool
	endpoint   string
	httpClient *http.Client
}

// NewBrevoClient returns nil when the API key or sender address is missing,
// which leaves notifications disabled.
func NewBrevoClient(apiKey, senderEmail, senderName string, sandbox bool, opts ...Option) *BrevoClient {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(senderEmail) == "" {
		return nil
	}
	if strings.TrimSpace(senderName) == "" {
		senderName = senderEmail
	}
	c := &BrevoClient{
		apiKey:     apiKey,
		sender:     Recipient{Email: senderEmail, Name: senderName},
		sandbox:    sandbox,
		endpoint:   defaultBrevoEndpoint,
		httpClient: &http.Client{Timeout: 8 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts msg and returns the Brevo message id.
func (c *BrevoClient) Send(ctx context.Context, msg Message) (string, error) {
	if c == nil {
		return "", ErrNotConfigured
	}
	if len(msg.To) == 0 || strings.TrimSpace(msg.Subject) == "" || strings.TrimSpace(msg.HTML) == "" {
		return "", ErrEmptyMessage
	}

	payload := sendRequest{
		Sender:      c.sender,
		To:          msg.To,
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		Tags:        msg.Tags,
	}
	if c.sandbox {
		payload.Headers = map[string]string{"X-Sib-Sandbox": "drop"}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("brevo encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("brevo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("brevo send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("brevo decode: %w", err)
	}
	if out.MessageID == "" {
		return "", errors.New("brevo: response without messageId")
	}
	return out.MessageID, nil
}

type sendRequest struct {
	Sender      Recipient         `json:"sender"`
	To          []Recipient       `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Tags        []string          `json:"tags,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
}
