package booksurf_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/booksurf/booksurf"
	"github.com/booksurf/booksurf/workflow"
)

func validSignUp() booksurf.SignUpMessage {
	return booksurf.SignUpMessage{
		FullName:       "Ada Lovelace",
		Email:          "ada@uni.edu",
		UniversityID:   12345,
		UniversityCard: "cards/ada.png",
		Password:       "supersecret1",
		ClientAddr:     "192.0.2.10",
	}
}

func allowAll() *MockLimiter {
	limiter := new(MockLimiter)
	limiter.On("Limit", mock.Anything, mock.Anything).Return(true, nil)
	return limiter
}

func TestSignUpHandler_Execute(t *testing.T) {
	const onboardingURL = "https://app.example.com/api/workflows/onboarding"

	t.Run("creates the user and triggers onboarding", func(t *testing.T) {
		users := new(MockUsers)
		users.On("GetByEmail", mock.Anything, "ada@uni.edu").Return(nil, notFoundErr())
		users.On("GetByUniversityID", mock.Anything, int64(12345)).Return(nil, notFoundErr())
		users.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

		trigger := new(MockTrigger)
		trigger.On("Trigger", mock.Anything, onboardingURL, mock.MatchedBy(func(p any) bool {
			payload, ok := p.(booksurf.TriggerPayload)
			return ok && payload.Email == "ada@uni.edu" && payload.FullName == "Ada Lovelace"
		})).Return(workflow.RunHandle{RunID: "wfr_1"}, nil)

		handler := booksurf.NewSignUpHandler(NewMockRepoManager(users), allowAll(), trigger, onboardingURL, nopLogger{})

		var result *booksurf.SignUpResult
		msg := validSignUp()
		msg.OnResponse = func(r *booksurf.SignUpResult) { result = r }

		require.NoError(t, handler.Execute(context.Background(), msg))
		require.NotNil(t, result)
		assert.True(t, result.Success)
		assert.Empty(t, result.Error)
		assert.Equal(t, "wfr_1", result.RunID)
		require.NotNil(t, result.User)
		assert.NotEqual(t, msg.Password, result.User.PasswordHash)

		users.AssertExpectations(t)
		trigger.AssertExpectations(t)
	})

	t.Run("rate limited requests redirect without touching storage", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("Limit", mock.Anything, "192.0.2.10").Return(false, nil)

		users := new(MockUsers)
		handler := booksurf.NewSignUpHandler(NewMockRepoManager(users), limiter, nil, onboardingURL, nopLogger{})

		var result *booksurf.SignUpResult
		msg := validSignUp()
		msg.OnResponse = func(r *booksurf.SignUpResult) { result = r }

		require.NoError(t, handler.Execute(context.Background(), msg))
		require.NotNil(t, result)
		assert.False(t, result.Success)
		assert.Equal(t, booksurf.TooFastRoute, result.Redirect)
		users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("duplicate email gets the email-specific message", func(t *testing.T) {
		users := new(MockUsers)
		users.On("GetByEmail", mock.Anything, "ada@uni.edu").Return(&booksurf.User{Email: "ada@uni.edu"}, nil)

		handler := booksurf.NewSignUpHandler(NewMockRepoManager(users), allowAll(), nil, onboardingURL, nopLogger{})

		var result *booksurf.SignUpResult
		msg := validSignUp()
		msg.OnResponse = func(r *booksurf.SignUpResult) { result = r }

		require.NoError(t, handler.Execute(context.Background(), msg))
		require.NotNil(t, result)
		assert.False(t, result.Success)
		assert.Equal(t, booksurf.MsgDuplicateEmail, result.Error)
		users.AssertNotCalled(t, "RegisterTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("duplicate university id gets the id-specific message", func(t *testing.T) {
		users := new(MockUsers)
		users.On("GetByEmail", mock.Anything, "ada@uni.edu").Return(nil, notFoundErr())
		users.On("GetByUniversityID", mock.Anything, int64(12345)).Return(&booksurf.User{UniversityID: 12345}, nil)

		handler := booksurf.NewSignUpHandler(NewMockRepoManager(users), allowAll(), nil, onboardingURL, nopLogger{})

		var result *booksurf.SignUpResult
		msg := validSignUp()
		msg.OnResponse = func(r *booksurf.SignUpResult) { result = r }

		require.NoError(t, handler.Execute(context.Background(), msg))
		require.NotNil(t, result)
		assert.False(t, result.Success)
		assert.Equal(t, booksurf.MsgDuplicateUniversityID, result.Error)
		users.AssertNotCalled(t, "RegisterTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a racing duplicate insert still maps to the field message", func(t *testing.T) {
		users := new(MockUsers)
		users.On("GetByEmail", mock.Anything, "ada@uni.edu").Return(nil, notFoundErr())
		users.On("GetByUniversityID", mock.Anything, int64(12345)).Return(nil, notFoundErr())
		users.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New(`duplicate key value violates unique constraint "users_email_unique"`))

		handler := booksurf.NewSignUpHandler(NewMockRepoManager(users), allowAll(), nil, onboardingURL, nopLogger{})

		var result *booksurf.SignUpResult
		msg := validSignUp()
		msg.OnResponse = func(r *booksurf.SignUpResult) { result = r }

		require.NoError(t, handler.Execute(context.Background(), msg))
		require.NotNil(t, result)
		assert.False(t, result.Success)
		assert.Equal(t, booksurf.MsgDuplicateEmail, result.Error)
	})

	t.Run("invalid payload reports validation errors", func(t *testing.T) {
		users := new(MockUsers)
		handler := booksurf.NewSignUpHandler(NewMockRepoManager(users), allowAll(), nil, onboardingURL, nopLogger{})

		var result *booksurf.SignUpResult
		msg := validSignUp()
		msg.Email = "not-an-email"
		msg.OnResponse = func(r *booksurf.SignUpResult) { result = r }

		require.NoError(t, handler.Execute(context.Background(), msg))
		require.NotNil(t, result)
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
		users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	})

	t.Run("a trigger failure does not fail the signup", func(t *testing.T) {
		users := new(MockUsers)
		users.On("GetByEmail", mock.Anything, "ada@uni.edu").Return(nil, notFoundErr())
		users.On("GetByUniversityID", mock.Anything, int64(12345)).Return(nil, notFoundErr())
		users.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

		trigger := new(MockTrigger)
		trigger.On("Trigger", mock.Anything, mock.Anything, mock.Anything).
			Return(workflow.RunHandle{}, assert.AnError)

		handler := booksurf.NewSignUpHandler(NewMockRepoManager(users), allowAll(), trigger, onboardingURL, nopLogger{})

		var result *booksurf.SignUpResult
		msg := validSignUp()
		msg.OnResponse = func(r *booksurf.SignUpResult) { result = r }

		require.NoError(t, handler.Execute(context.Background(), msg))
		require.NotNil(t, result)
		assert.True(t, result.Success)
		assert.Empty(t, result.RunID)
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		handler := booksurf.NewSignUpHandler(NewMockRepoManager(new(MockUsers)), allowAll(), nil, onboardingURL, nopLogger{})

		err := handler.Execute(ctx, validSignUp())
		assert.Error(t, err)
	})
}
