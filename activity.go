package booksurf

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// ActivityStore is the persistence surface the tracker needs
type ActivityStore interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*User, error)
	TouchActivity(ctx context.Context, id uuid.UUID, day time.Time) error
}

// ActivityTracker keeps last_activity_date equal to "today" for users we
// see on authenticated requests. A touch issues at most one write per user
// per calendar day; same-day repeats read the record and stop.
type ActivityTracker struct {
	store   ActivityStore
	logger  Logger
	now     func() time.Time
	timeout time.Duration
}

// ActivityTrackerOption customizes the tracker
type ActivityTrackerOption func(*ActivityTracker)

// WithActivityClock injects a custom clock (useful for tests)
func WithActivityClock(clock func() time.Time) ActivityTrackerOption {
	return func(t *ActivityTracker) {
		if clock != nil {
			t.now = clock
		}
	}
}

// WithActivityLogger sets the logger used by the deferred path
func WithActivityLogger(l Logger) ActivityTrackerOption {
	return func(t *ActivityTracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithActivityTimeout bounds the deferred touch
func WithActivityTimeout(d time.Duration) ActivityTrackerOption {
	return func(t *ActivityTracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// NewActivityTracker will create a new ActivityTracker
func NewActivityTracker(store ActivityStore, opts ...ActivityTrackerOption) *ActivityTracker {
	t := &ActivityTracker{
		store:   store,
		logger:  defLogger{},
		now:     time.Now,
		timeout: 5 * time.Second,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t
}

// Touch ensures the user's last activity date is today. An empty id and a
// missing record are no-ops: a session pointing at a deleted user is a
// recoverable inconsistency, not an error. Concurrent same-day touches may
// race on the read, but the write itself is idempotent so the interleaving
// does not matter.
func (t *ActivityTracker) Touch(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}

	user, err := t.store.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for activity tracking")
	}

	if user.ActiveToday(t.now()) {
		return nil
	}

	if err := t.store.TouchActivity(ctx, user.ID, t.now()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to record user activity").
			WithMetadata(map[string]any{"user_id": userID})
	}

	return nil
}

// Deferred returns a fire-and-forget closure for running the touch after
// the response has been produced. Errors are logged and swallowed; the
// request that scheduled the touch is already gone.
func (t *ActivityTracker) Deferred(userID string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		if err := t.Touch(ctx, userID); err != nil {
			t.logger.Error("deferred activity touch failed for %s: %v", userID, err)
		}
	}
}
