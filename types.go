package booksurf

import (
	"context"
	"fmt"

	"github.com/booksurf/booksurf/workflow"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// RateLimiter admits or rejects operations per key; we key by client
// network address
type RateLimiter interface {
	Limit(ctx context.Context, key string) (bool, error)
}

// Mailer delivers a single HTML message
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// WorkflowTrigger enqueues a durable workflow run. The call is
// fire-and-forget: it returns once the run is accepted and never waits for
// the run itself, which is designed to loop forever.
type WorkflowTrigger interface {
	Trigger(ctx context.Context, endpoint string, payload any) (workflow.RunHandle, error)
}

// SessionConfig holds what we need to mint and verify session tokens
type SessionConfig interface {
	GetSigningKey() string
	GetIssuer() string
	GetTokenExpiration() int
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] BOOKSURF "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] BOOKSURF "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] BOOKSURF "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
