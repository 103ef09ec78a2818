package booksurf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// HTTPMailer delivers mail through a JSON email API (Resend-style: POST a
// from/to/subject/html document with a bearer token).
type HTTPMailer struct {
	endpoint   string
	token      string
	from       string
	httpClient *http.Client
	logger     Logger
}

type MailerOption func(*HTTPMailer)

func WithMailerHTTPClient(client *http.Client) MailerOption {
	return func(m *HTTPMailer) {
		if client != nil {
			m.httpClient = client
		}
	}
}

func WithMailerLogger(l Logger) MailerOption {
	return func(m *HTTPMailer) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewHTTPMailer(endpoint, token, from string, opts ...MailerOption) *HTTPMailer {
	m := &HTTPMailer{
		endpoint:   endpoint,
		token:      token,
		from:       from,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     defLogger{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

type mailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *HTTPMailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	body, err := json.Marshal(mailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode mail request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build mail request")
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	res, err := m.httpClient.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "mail delivery request failed")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return goerrors.New(
			fmt.Sprintf("mail API rejected message: %s", res.Status),
			goerrors.CategoryOperation,
		).WithMetadata(map[string]any{
			"status": res.StatusCode,
			"body":   string(payload),
			"to":     to,
		})
	}

	m.logger.Debug("mail sent to %s: %s", to, subject)
	return nil
}

// ConsoleMailer logs instead of delivering. Used in development and as the
// fallback when no mail API is configured.
type ConsoleMailer struct {
	logger Logger
}

func NewConsoleMailer(l Logger) *ConsoleMailer {
	if l == nil {
		l = defLogger{}
	}
	return &ConsoleMailer{logger: l}
}

func (m *ConsoleMailer) SendEmail(_ context.Context, to, subject, htmlBody string) error {
	m.logger.Info("mail to=%s subject=%q body=%q", to, subject, htmlBody)
	return nil
}
