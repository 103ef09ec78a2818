package booksurf

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// SessionCookieName is the cookie that carries the signed session token
const SessionCookieName = "booksurf_session"

// SessionClaims are what we put inside a session token. Subject holds the
// user id.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Role  UserRole `json:"role,omitempty"`
}

// SessionService mints and verifies session tokens. Tokens are HS256 signed
// and carry no server side state.
type SessionService struct {
	signingKey []byte
	issuer     string
	expiration time.Duration
	now        func() time.Time
}

type SessionOption func(*SessionService)

// WithSessionClock overrides the session clock, mostly for tests
func WithSessionClock(clock func() time.Time) SessionOption {
	return func(s *SessionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

func NewSessionService(cfg SessionConfig, opts ...SessionOption) *SessionService {
	expiration := time.Duration(cfg.GetTokenExpiration()) * time.Hour
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	s := &SessionService{
		signingKey: []byte(cfg.GetSigningKey()),
		issuer:     cfg.GetIssuer(),
		expiration: expiration,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Issue signs a session token for the given user
func (s *SessionService) Issue(user *User) (string, error) {
	if user == nil {
		return "", goerrors.New("cannot issue session for nil user", goerrors.CategoryInternal)
	}

	now := s.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
		},
		Email: user.Email,
		Role:  user.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return token, nil
}

// Parse verifies a session token and returns its claims
func (s *SessionService) Parse(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid session token").
			WithCode(goerrors.CodeUnauthorized)
	}

	if !token.Valid {
		return nil, goerrors.New("invalid session token", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	return claims, nil
}
