package booksurf

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	// TextCodeDuplicateEmail marks a signup rejected for an already registered email
	TextCodeDuplicateEmail = "DUPLICATE_EMAIL"
	// TextCodeDuplicateUniversityID marks a signup rejected for an already registered university ID
	TextCodeDuplicateUniversityID = "DUPLICATE_UNIVERSITY_ID"
	// TextCodeRateLimited marks a request rejected by the rate limiter
	TextCodeRateLimited = "RATE_LIMITED"
	// TextCodeInvalidCreds marks a credential rejection
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
)

// User-facing messages. Signup errors are field-specific; signin errors
// never reveal which credential was wrong.
const (
	MsgDuplicateEmail        = "Email already registered. Please sign in instead."
	MsgDuplicateUniversityID = "This University ID is already registered. Please contact support if this is an error."
	MsgSignUpFallback        = "An error occurred during signup. Please try again."
	MsgSignInFallback        = "Invalid email or password."
)

// ErrDuplicateEmail is returned when the signup email is already registered
var ErrDuplicateEmail = goerrors.New(MsgDuplicateEmail, goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateUniversityID is returned when the university ID is already registered
var ErrDuplicateUniversityID = goerrors.New(MsgDuplicateUniversityID, goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateUniversityID).
	WithCode(goerrors.CodeConflict)

// ErrRateLimited is returned when the limiter rejects a client address.
// Callers redirect to the too-many-requests page instead of rendering
// this as a form error.
var ErrRateLimited = goerrors.New("too many requests", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited).
	WithCode(http.StatusTooManyRequests)

// ErrInvalidCredentials is the generic credential rejection
var ErrInvalidCredentials = goerrors.New(MsgSignInFallback, goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ClassifyUniqueViolation maps a driver-level unique-constraint error to the
// field-specific signup error. It covers postgres constraint names and the
// sqlite message format, so a duplicate that slips past the pre-insert
// checks still produces the right message. Returns nil when err is not a
// recognizable unique violation.
func ClassifyUniqueViolation(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique") && !strings.Contains(msg, "duplicate key") {
		return nil
	}

	switch {
	case strings.Contains(msg, "users_email_unique"),
		strings.Contains(msg, "users.email"):
		return ErrDuplicateEmail
	case strings.Contains(msg, "users_university_id_unique"),
		strings.Contains(msg, "users.university_id"):
		return ErrDuplicateUniversityID
	}

	return nil
}

// isNotFound covers both the repository sentinel and rich errors carrying
// the not found category
func isNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || goerrors.IsNotFound(err)
}

// IsUniqueViolation reports whether err is a unique-constraint violation on
// one of the user columns we enforce
func IsUniqueViolation(err error) bool {
	return ClassifyUniqueViolation(err) != nil
}
