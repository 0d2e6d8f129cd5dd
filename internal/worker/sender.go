package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// MessageSender defines the interface for the outbound channel
type MessageSender interface {
	Send(ctx context.Context, number, content string, mediaURL *string) error
}

// whatsappSender delivers messages through the WhatsApp provider's HTTP API
type whatsappSender struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewWhatsAppSender creates a sender backed by the WhatsApp provider.
// timeout bounds each send; a timed-out send surfaces as a delivery failure
// subject to the normal retry policy.
func NewWhatsAppSender(baseURL, token string, timeout time.Duration) MessageSender {
	return &whatsappSender{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type whatsappSendRequest struct {
	Number   string `json:"number"`
	Content  string `json:"content"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

// Send posts the message to the provider
func (s *whatsappSender) Send(ctx context.Context, number, content string, mediaURL *string) error {
	payload := whatsappSendRequest{
		Number:  number,
		Content: content,
	}
	if mediaURL != nil {
		payload.MediaURL = *mediaURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp send failed: unexpected status %d", resp.StatusCode)
	}

	return nil
}

// mockSender simulates message sending for local development
type mockSender struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
}

// NewMockSender creates a new mock message sender
// successRate: probability of success (0.0 to 1.0), default 0.92 (92%)
func NewMockSender(successRate float64) MessageSender {
	if successRate <= 0 || successRate > 1.0 {
		successRate = 0.92
	}

	return &mockSender{
		successRate: successRate,
		minDelay:    50 * time.Millisecond, // Simulate network latency
		maxDelay:    200 * time.Millisecond,
	}
}

// Send simulates sending a message
func (s *mockSender) Send(ctx context.Context, number, content string, mediaURL *string) error {
	delay := s.minDelay + time.Duration(rand.Int63n(int64(s.maxDelay-s.minDelay)))

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if rand.Float64() > s.successRate {
		return fmt.Errorf("mock sender failed: simulated network error")
	}

	return nil
}
