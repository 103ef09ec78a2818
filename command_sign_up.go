package booksurf

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// TooFastRoute is where rate limited clients land
const TooFastRoute = "/too-fast"

type SignUpMessage struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	UniversityID   int64  `json:"university_id"`
	UniversityCard string `json:"university_card"`
	Password       string `json:"password"`
	// ClientAddr is the caller's network address, used as the rate limit key
	ClientAddr string `json:"-"`
	OnResponse func(*SignUpResult)
}

func (e SignUpMessage) Type() string { return "auth.sign_up" }

func (e SignUpMessage) Validate() error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.FullName, validation.Required, validation.Length(3, 100)),
			validation.Field(&e.Email, validation.Required, is.Email),
			validation.Field(&e.UniversityID, validation.Required, validation.Min(1)),
			validation.Field(&e.UniversityCard, validation.Required),
			validation.Field(&e.Password, validation.Required, validation.Length(8, 100)),
		)
	}, "signup payload failed validation")
}

// SignUpResult carries the outcome back to the HTTP boundary. A non empty
// Redirect means the client should be sent there instead of rendering the
// form again.
type SignUpResult struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Redirect string `json:"-"`
	User     *User  `json:"-"`
	RunID    string `json:"-"`
}

type SignUpHandler struct {
	repo          RepositoryManager
	limiter       RateLimiter
	workflows     WorkflowTrigger
	onboardingURL string
	logger        Logger
}

func NewSignUpHandler(repo RepositoryManager, limiter RateLimiter, workflows WorkflowTrigger, onboardingURL string, logger Logger) *SignUpHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &SignUpHandler{
		repo:          repo,
		limiter:       limiter,
		workflows:     workflows,
		onboardingURL: onboardingURL,
		logger:        logger,
	}
}

func (h *SignUpHandler) Execute(ctx context.Context, event SignUpMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignUpHandler) execute(ctx context.Context, event SignUpMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &SignUpResult{}
	respond := func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}

	if h.limiter != nil {
		allowed, err := h.limiter.Limit(ctx, event.ClientAddr)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "rate limiter failure")
		}
		if !allowed {
			resp.Redirect = TooFastRoute
			respond()
			return nil
		}
	}

	if err := event.Validate(); err != nil {
		resp.Error = err.Error()
		respond()
		return nil
	}

	// Pre-insert lookups give field specific messages without depending on
	// driver error text. The unique indexes still back them up under races.
	if _, err := h.repo.Users().GetByEmail(ctx, event.Email); err == nil {
		resp.Error = MsgDuplicateEmail
		respond()
		return nil
	} else if !isNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "email lookup failed")
	}

	if _, err := h.repo.Users().GetByUniversityID(ctx, event.UniversityID); err == nil {
		resp.Error = MsgDuplicateUniversityID
		respond()
		return nil
	} else if !isNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "university ID lookup failed")
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		FullName:       event.FullName,
		Email:          event.Email,
		UniversityID:   event.UniversityID,
		UniversityCard: event.UniversityCard,
		PasswordHash:   hash,
	}
	if id, err := hashid.NewUUID(event.Email); err == nil {
		user.ID = id
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if dup := ClassifyUniqueViolation(err); dup != nil {
			resp.Error = dup.Message
			respond()
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "signup transaction failed")
	}

	// The account exists from here on. A trigger failure means the user gets
	// no onboarding emails until the run is kicked off again, not a failed
	// signup.
	if h.workflows != nil {
		handle, err := h.workflows.Trigger(ctx, h.onboardingURL, TriggerPayload{
			Email:    user.Email,
			FullName: user.FullName,
		})
		if err != nil {
			h.logger.Error("onboarding trigger failed for %s: %v", user.Email, err)
		} else {
			resp.RunID = handle.RunID
		}
	}

	resp.Success = true
	resp.User = user
	respond()

	return nil
}
