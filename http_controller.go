package booksurf

import (
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/booksurf/booksurf/workflow"
)

const (
	sessionKey = "session"
	// clientAddrKey is where the adapter layer stashes the client network
	// address; router.Context has no address accessor of its own
	clientAddrKey = "client_addr"
)

type ControllerRoutes struct {
	SignUp     string
	SignIn     string
	SignOut    string
	TooFast    string
	Me         string
	Onboarding string
}

type Controller struct {
	Debug      bool
	Logger     Logger
	Repo       RepositoryManager
	Sessions   *SessionService
	SignUp     *SignUpHandler
	SignIn     *SignInHandler
	Tracker    *ActivityTracker
	Engagement *Engagement
	Routes     *ControllerRoutes
}

type ControllerOption func(*Controller) *Controller

func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

func WithControllerLogger(l Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func WithControllerRoutes(routes *ControllerRoutes) ControllerOption {
	return func(c *Controller) *Controller {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Repo = repo
		return c
	}
}

func WithControllerSessions(s *SessionService) ControllerOption {
	return func(c *Controller) *Controller {
		c.Sessions = s
		return c
	}
}

func WithControllerHandlers(signUp *SignUpHandler, signIn *SignInHandler) ControllerOption {
	return func(c *Controller) *Controller {
		c.SignUp = signUp
		c.SignIn = signIn
		return c
	}
}

func WithControllerTracker(t *ActivityTracker) ControllerOption {
	return func(c *Controller) *Controller {
		c.Tracker = t
		return c
	}
}

func WithControllerEngagement(e *Engagement) ControllerOption {
	return func(c *Controller) *Controller {
		c.Engagement = e
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger: defLogger{},
		Routes: &ControllerRoutes{
			SignUp:     "/auth/sign-up",
			SignIn:     "/auth/sign-in",
			SignOut:    "/auth/sign-out",
			TooFast:    TooFastRoute,
			Me:         "/me",
			Onboarding: "/api/workflows/onboarding",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionService in controller...")
	}

	return c
}

func RegisterRoutes[T any](app router.Router[T], opts ...ControllerOption) *Controller {
	c := NewController(opts...)

	app.Post(c.Routes.SignUp, c.SignUpPost).SetName("auth.sign-up")
	app.Post(c.Routes.SignIn, c.SignInPost).SetName("auth.sign-in")
	app.Get(c.Routes.SignOut, c.SignOut).SetName("auth.sign-out")
	app.Get(c.Routes.TooFast, c.TooFast).SetName("auth.too-fast")

	app.Get(c.Routes.Me, c.Me, c.RequireSession, c.TrackActivity).
		SetName("me.get")

	if c.Engagement != nil {
		app.Post(c.Routes.Onboarding,
			workflow.Serve(c.Engagement.Onboarding, workflow.WithServeLogger(c.Logger)),
		).SetName("workflows.onboarding")
	}

	return c
}

func (a *Controller) SignUpPost(ctx router.Context) error {
	payload := new(SignUpMessage)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload: %v", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Failed to parse request body",
		})
	}

	if a.Debug {
		fmt.Println("====== SIGN UP ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=====================")
	}

	var result *SignUpResult
	payload.ClientAddr = clientAddr(ctx)
	payload.OnResponse = func(r *SignUpResult) { result = r }

	if err := a.SignUp.Execute(ctx.Context(), *payload); err != nil {
		a.Logger.Error("signup execute: %v", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   MsgSignUpFallback,
		})
	}

	if result == nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   MsgSignUpFallback,
		})
	}

	if result.Redirect != "" && !result.Success {
		return ctx.Redirect(result.Redirect, router.StatusSeeOther)
	}

	if !result.Success {
		return ctx.JSON(http.StatusConflict, map[string]any{
			"success": false,
			"error":   result.Error,
		})
	}

	// sign the new user in right away
	token, err := a.Sessions.Issue(result.User)
	if err != nil {
		a.Logger.Error("signup session issue: %v", err)
		return ctx.JSON(http.StatusCreated, map[string]any{
			"success": true,
		})
	}
	a.setSessionCookie(ctx, token)

	return ctx.JSON(http.StatusCreated, map[string]any{
		"success": true,
	})
}

func (a *Controller) SignInPost(ctx router.Context) error {
	payload := new(SignInMessage)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signin parse payload: %v", err)
		return ctx.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   MsgSignInFallback,
		})
	}

	var result *SignInResult
	payload.ClientAddr = clientAddr(ctx)
	payload.OnResponse = func(r *SignInResult) { result = r }

	if err := a.SignIn.Execute(ctx.Context(), *payload); err != nil {
		a.Logger.Error("signin execute: %v", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   MsgSignInFallback,
		})
	}

	if result == nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   MsgSignInFallback,
		})
	}

	if a.Debug {
		fmt.Println("====== SIGN IN ======")
		fmt.Println(print.MaybePrettyJSON(result))
		fmt.Println("=====================")
	}

	if result.Redirect != "" && !result.Success {
		return ctx.Redirect(result.Redirect, router.StatusSeeOther)
	}

	if !result.Success {
		return ctx.JSON(http.StatusUnauthorized, map[string]any{
			"success": false,
			"error":   result.Error,
		})
	}

	a.setSessionCookie(ctx, result.Token)

	// No activity touch here: last_activity_date moves on authenticated page
	// loads (TrackActivity), not on the signin action itself.
	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
	})
}

func (a *Controller) SignOut(ctx router.Context) error {
	ctx.Cookie(&router.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
	})
	return ctx.Redirect("/", router.StatusSeeOther)
}

func (a *Controller) TooFast(ctx router.Context) error {
	return ctx.JSON(http.StatusTooManyRequests, map[string]any{
		"error":   "Whoa, Slow Down There, Speedy!",
		"message": "Looks like you have been a little too eager. We have put a temporary pause on your excitement. Chill for a bit, and try again shortly.",
	})
}

func (a *Controller) Me(ctx router.Context) error {
	claims, err := SessionFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, map[string]any{
			"error": "Unauthorized",
		})
	}

	user, err := a.Repo.Users().GetByID(ctx.Context(), claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return ctx.JSON(http.StatusNotFound, map[string]any{
				"error": "User not found",
			})
		}
		a.Logger.Error("me lookup: %v", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]any{
			"error": "Internal error",
		})
	}

	// shape the response instead of serializing the model; the model's
	// JSON form includes the password hash
	return ctx.JSON(http.StatusOK, map[string]any{
		"id":                 user.ID,
		"full_name":          user.FullName,
		"email":              user.Email,
		"university_id":      user.UniversityID,
		"role":               user.Role,
		"status":             user.Status,
		"last_activity_date": user.LastActivityDate,
	})
}

// RequireSession rejects requests without a valid session token. The token
// comes from the session cookie; claims end up in Locals under sessionKey.
func (a *Controller) RequireSession(hf router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		token := ctx.Cookies(SessionCookieName)
		if token == "" {
			return ctx.JSON(http.StatusUnauthorized, map[string]any{
				"error": "Unauthorized",
			})
		}

		claims, err := a.Sessions.Parse(token)
		if err != nil {
			a.Logger.Debug("session parse failed: %v", err)
			return ctx.JSON(http.StatusUnauthorized, map[string]any{
				"error": "Unauthorized",
			})
		}

		ctx.Locals(sessionKey, claims)
		return hf(ctx)
	}
}

// TrackActivity schedules a last-activity touch after the handler has
// produced its response. The touch runs on its own goroutine with its own
// deadline; failures never affect the request that scheduled them.
func (a *Controller) TrackActivity(hf router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		err := hf(ctx)

		if a.Tracker == nil {
			return err
		}

		if claims, serr := SessionFromContext(ctx); serr == nil {
			go a.Tracker.Deferred(claims.Subject)()
		}

		return err
	}
}

// SessionFromContext pulls parsed session claims out of the request locals
func SessionFromContext(ctx router.Context) (*SessionClaims, error) {
	val := ctx.Locals(sessionKey)
	if val == nil {
		return nil, goerrors.New("no session in request context", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	claims, ok := val.(*SessionClaims)
	if !ok {
		return nil, goerrors.New("unexpected session type in request context", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	return claims, nil
}

func (a *Controller) setSessionCookie(ctx router.Context, token string) {
	ctx.Cookie(&router.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Expires:  time.Now().Add(a.Sessions.expiration),
		HTTPOnly: true,
	})
}

func clientAddr(ctx router.Context) string {
	if val := ctx.Locals(clientAddrKey); val != nil {
		if addr, ok := val.(string); ok {
			return addr
		}
	}
	return ""
}
