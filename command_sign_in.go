package booksurf

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type SignInMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// ClientAddr is the caller's network address, used as the rate limit key
	ClientAddr string `json:"-"`
	OnResponse func(*SignInResult)
}

func (e SignInMessage) Type() string { return "auth.sign_in" }

func (e SignInMessage) Validate() error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Email, validation.Required, is.Email),
			validation.Field(&e.Password, validation.Required),
		)
	}, "signin payload failed validation")
}

type SignInResult struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Redirect string `json:"-"`
	Token    string `json:"-"`
	User     *User  `json:"-"`
}

type SignInHandler struct {
	repo     RepositoryManager
	limiter  RateLimiter
	sessions *SessionService
	logger   Logger
}

func NewSignInHandler(repo RepositoryManager, limiter RateLimiter, sessions *SessionService, logger Logger) *SignInHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &SignInHandler{
		repo:     repo,
		limiter:  limiter,
		sessions: sessions,
		logger:   logger,
	}
}

func (h *SignInHandler) Execute(ctx context.Context, event SignInMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signin",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignInHandler) execute(ctx context.Context, event SignInMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &SignInResult{}
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

	// Every credential failure below yields the same message. Which part
	// was wrong stays on the server.
	if err := event.Validate(); err != nil {
		resp.Error = MsgSignInFallback
		respond()
		return nil
	}

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if isNotFound(err) {
			resp.Error = MsgSignInFallback
			respond()
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryOperation, "email lookup failed")
	}

	if err := ComparePasswordAndHash(event.Password, user.PasswordHash); err != nil {
		h.logger.Debug("password mismatch for %s", event.Email)
		resp.Error = MsgSignInFallback
		respond()
		return nil
	}

	token, err := h.sessions.Issue(user)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue session")
	}

	resp.Success = true
	resp.Token = token
	resp.User = user
	resp.Redirect = "/"
	respond()

	return nil
}
