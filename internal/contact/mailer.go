package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Mailer delivers an Email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// ResendMailer posts emails to the Resend HTTP API.
type ResendMailer struct {
	apiURL string
	apiKey string
	client *http.Client
}

func NewResendMailer(apiURL, apiKey string, timeout time.Duration) *ResendMailer {
	if apiURL == "" {
		apiURL = "https://api.resend.com/emails"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ResendMailer{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (m *ResendMailer) Send(ctx context.Context, email Email) error {
	if m.apiKey == "" {
		return ErrMailNotReady
	}

	body, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: resend returned status %d: %s", ErrDeliveryFailure, resp.StatusCode, string(detail))
	}
	return nil
}

// LogMailer only logs outgoing emails. Used in development.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, email Email) error {
	m.log.Info("contact email",
		zap.Strings("to", email.To),
		zap.String("reply_to", email.ReplyTo),
		zap.String("subject", email.Subject),
		zap.Int("attachments", len(email.Attachments)),
	)
	return nil
}
