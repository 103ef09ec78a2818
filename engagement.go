package booksurf

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/booksurf/booksurf/workflow"
)

// UserState is the derived engagement status of an account
type UserState string

const (
	// UserStateActive selects the "new books" re-engagement message
	UserStateActive UserState = "active"
	// UserStateNonActive selects the "we miss you" message
	UserStateNonActive UserState = "non-active"
)

const (
	// ShortActivityThreshold is how long a user can be idle before counting
	// as non-active
	ShortActivityThreshold = 3 * 24 * time.Hour
	// WelcomeDelay is the pause between the welcome email and the first
	// engagement check
	WelcomeDelay = 3 * 24 * time.Hour
	// DefaultReengageInterval is the long-cycle interval between checks
	DefaultReengageInterval = 7 * 24 * time.Hour
	// ExtendedReengageInterval is the alternative long cycle used by the
	// slower campaign variant
	ExtendedReengageInterval = 30 * 24 * time.Hour
)

// EngagementConfig holds the campaign timing knobs. The long interval is
// deliberately configuration, not business logic: deployed campaigns
// disagree on 7 vs 30 days (see DESIGN.md).
type EngagementConfig struct {
	// ShortThreshold is the idle time after which a user stops counting as
	// recently active
	ShortThreshold time.Duration
	// ReengageInterval is both the upper bound of the non-active window and
	// the sleep between engagement checks
	ReengageInterval time.Duration
	// WelcomeDelay is the pause after the welcome email
	WelcomeDelay time.Duration
}

func (c EngagementConfig) withDefaults() EngagementConfig {
	if c.ShortThreshold <= 0 {
		c.ShortThreshold = ShortActivityThreshold
	}
	if c.ReengageInterval <= 0 {
		c.ReengageInterval = DefaultReengageInterval
	}
	if c.WelcomeDelay <= 0 {
		c.WelcomeDelay = WelcomeDelay
	}
	return c
}

// ClassifyActivity derives a user's engagement state from elapsed time
// since their last recorded activity.
//
// A user idle longer than the re-engage interval classifies as active
// again, not non-active. That asymmetry is preserved upstream behavior,
// flagged in DESIGN.md as an open product question; do not "fix" it here.
func ClassifyActivity(user *User, now time.Time, cfg EngagementConfig) UserState {
	cfg = cfg.withDefaults()

	// A nil date can only come from rows predating the column; read it as
	// never-seen.
	if user == nil || user.LastActivityDate == nil {
		return UserStateNonActive
	}

	elapsed := now.Sub(*user.LastActivityDate)
	if elapsed > cfg.ShortThreshold && elapsed <= cfg.ReengageInterval {
		return UserStateNonActive
	}

	return UserStateActive
}

// TriggerPayload is the initial data a signup hands to the onboarding
// workflow. It accepts both the "fullName" and legacy "fullname" field
// spellings on decode and always emits "fullName".
type TriggerPayload struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

func (p *TriggerPayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		Email    string `json:"email"`
		FullName string `json:"fullName"`
		Legacy   string `json:"fullname"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Email = raw.Email
	p.FullName = raw.FullName
	if p.FullName == "" {
		p.FullName = raw.Legacy
	}
	return nil
}

// UserFinder is the read-only lookup the workflow performs on each wake
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// Engagement owns the onboarding/re-engagement campaign: one durable
// workflow run per signup, keyed by the user's email, looping forever
// between sleeps and engagement checks. It reads last_activity_date and
// never writes it.
type Engagement struct {
	users  UserFinder
	mailer Mailer
	cfg    EngagementConfig
	now    func() time.Time
	logger Logger
}

// EngagementOption customizes the campaign
type EngagementOption func(*Engagement)

// WithEngagementConfig overrides the campaign timing
func WithEngagementConfig(cfg EngagementConfig) EngagementOption {
	return func(e *Engagement) {
		e.cfg = cfg
	}
}

// WithEngagementClock injects a custom clock (useful for tests)
func WithEngagementClock(clock func() time.Time) EngagementOption {
	return func(e *Engagement) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithEngagementLogger sets the logger
func WithEngagementLogger(l Logger) EngagementOption {
	return func(e *Engagement) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngagement will create a new Engagement campaign
func NewEngagement(users UserFinder, mailer Mailer, opts ...EngagementOption) *Engagement {
	e := &Engagement{
		users:  users,
		mailer: mailer,
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	e.cfg = e.cfg.withDefaults()

	return e
}

// State looks up the user by email and classifies them. A missing record
// classifies as non-active.
func (e *Engagement) State(ctx context.Context, email string) (UserState, error) {
	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			e.logger.Debug("engagement check for %s: no record, treating as %s", email, UserStateNonActive)
			return UserStateNonActive, nil
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for engagement check")
	}

	state := ClassifyActivity(user, e.now(), e.cfg)
	e.logger.Debug("engagement check for %s: %s", email, state)

	return state, nil
}

// Workflow step names. These are checkpoint keys: renaming one under live
// runs makes the orchestrator's recorded logs drift.
const (
	stepWelcome       = "new-signup"
	stepWelcomeSleep  = "wait-for-3-days"
	stepCheckState    = "check-user-state"
	stepSendNonActive = "send-email-non-active"
	stepSendActive    = "send-email-active"
	stepReengageSleep = "wait-for-reengage-interval"
)

// Onboarding is the workflow definition: send the welcome message once,
// pause, then loop forever between engagement checks and sleeps. Errors
// from mail or lookup steps propagate so the orchestrator retries that
// step; there is no terminal state.
func (e *Engagement) Onboarding(c *workflow.Context) error {
	var p TriggerPayload
	if err := c.Payload(&p); err != nil {
		return err
	}

	if _, err := c.Run(stepWelcome, func(ctx context.Context) (any, error) {
		return nil, e.mailer.SendEmail(ctx, p.Email, welcomeSubject, welcomeBody(p.FullName))
	}); err != nil {
		return err
	}

	if err := c.Sleep(stepWelcomeSleep, e.cfg.WelcomeDelay); err != nil {
		return err
	}

	for {
		state, err := workflow.RunAs(c, stepCheckState, func(ctx context.Context) (UserState, error) {
			return e.State(ctx, p.Email)
		})
		if err != nil {
			return err
		}

		switch state {
		case UserStateNonActive:
			if _, err := c.Run(stepSendNonActive, func(ctx context.Context) (any, error) {
				return nil, e.mailer.SendEmail(ctx, p.Email, nonActiveSubject, nonActiveBody(p.FullName))
			}); err != nil {
				return err
			}
		case UserStateActive:
			if _, err := c.Run(stepSendActive, func(ctx context.Context) (any, error) {
				return nil, e.mailer.SendEmail(ctx, p.Email, activeSubject, activeBody(p.FullName))
			}); err != nil {
				return err
			}
		}

		if err := c.Sleep(stepReengageSleep, e.cfg.ReengageInterval); err != nil {
			return err
		}
	}
}

const (
	welcomeSubject   = "Welcome to BookSurf!"
	nonActiveSubject = "We miss you at BookSurf!"
	activeSubject    = "New books added to BookSurf!"
)

func welcomeBody(fullName string) string {
	return fmt.Sprintf(
		"<h1>Welcome %s!</h1><p>We're excited to have you at BookSurf. Start exploring our library today!</p>",
		fullName,
	)
}

func nonActiveBody(fullName string) string {
	return fmt.Sprintf(
		"<h2>Hey %s!</h2><p>We noticed you haven't been active lately. Come back and check out what's new!</p>",
		fullName,
	)
}

func activeBody(fullName string) string {
	return fmt.Sprintf(
		"<h2>Welcome back %s!</h2><p>Check out our latest collection of books added this week!</p>",
		fullName,
	)
}
