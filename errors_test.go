package booksurf_test

import (
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksurf/booksurf"
)

func TestClassifyUniqueViolation(t *testing.T) {
	t.Run("postgres email constraint", func(t *testing.T) {
		err := errors.New(`ERROR: duplicate key value violates unique constraint "users_email_unique" (SQLSTATE 23505)`)
		got := booksurf.ClassifyUniqueViolation(err)
		require.NotNil(t, got)
		assert.Equal(t, booksurf.MsgDuplicateEmail, got.Message)
	})

	t.Run("postgres university id constraint", func(t *testing.T) {
		err := errors.New(`ERROR: duplicate key value violates unique constraint "users_university_id_unique" (SQLSTATE 23505)`)
		got := booksurf.ClassifyUniqueViolation(err)
		require.NotNil(t, got)
		assert.Equal(t, booksurf.MsgDuplicateUniversityID, got.Message)
	})

	t.Run("sqlite message format", func(t *testing.T) {
		err := errors.New("UNIQUE constraint failed: users.email")
		got := booksurf.ClassifyUniqueViolation(err)
		require.NotNil(t, got)
		assert.Equal(t, booksurf.MsgDuplicateEmail, got.Message)

		err = errors.New("UNIQUE constraint failed: users.university_id")
		got = booksurf.ClassifyUniqueViolation(err)
		require.NotNil(t, got)
		assert.Equal(t, booksurf.MsgDuplicateUniversityID, got.Message)
	})

	t.Run("unrelated errors pass through", func(t *testing.T) {
		assert.Nil(t, booksurf.ClassifyUniqueViolation(nil))
		assert.Nil(t, booksurf.ClassifyUniqueViolation(errors.New("connection refused")))
		assert.Nil(t, booksurf.ClassifyUniqueViolation(errors.New("unique constraint on some_other_table")))
	})
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("duplicate errors are conflicts", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, booksurf.ErrDuplicateEmail.Category)
		assert.Equal(t, goerrors.CategoryConflict, booksurf.ErrDuplicateUniversityID.Category)
	})

	t.Run("signin failures carry the shared fallback message", func(t *testing.T) {
		assert.Equal(t, booksurf.MsgSignInFallback, booksurf.ErrInvalidCredentials.Message)
		assert.Equal(t, goerrors.CodeUnauthorized, booksurf.ErrInvalidCredentials.Code)
	})

	t.Run("rate limit error maps to 429", func(t *testing.T) {
		assert.Equal(t, 429, booksurf.ErrRateLimited.Code)
	})

	t.Run("IsUniqueViolation", func(t *testing.T) {
		assert.True(t, booksurf.IsUniqueViolation(errors.New("UNIQUE constraint failed: users.email")))
		assert.False(t, booksurf.IsUniqueViolation(errors.New("record not found")))
	})
}
