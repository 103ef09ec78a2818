package booksurf_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"mime/multipart"
	"sync"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	"github.com/booksurf/booksurf"
	"github.com/booksurf/booksurf/workflow"
)

// nopLogger keeps test output quiet
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// recordingLogger captures formatted log lines for assertions
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) log(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Debug(format string, args ...any) { l.log(format, args...) }
func (l *recordingLogger) Info(format string, args ...any)  { l.log(format, args...) }
func (l *recordingLogger) Error(format string, args ...any) { l.log(format, args...) }

func (l *recordingLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// MockMailer implements booksurf.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	args := m.Called(ctx, to, subject, htmlBody)
	return args.Error(0)
}

// MockUserFinder implements booksurf.UserFinder
type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) GetByEmail(ctx context.Context, email string) (*booksurf.User, error) {
	args := m.Called(ctx, email)
	if user, ok := args.Get(0).(*booksurf.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTrigger implements booksurf.WorkflowTrigger
type MockTrigger struct {
	mock.Mock
}

func (m *MockTrigger) Trigger(ctx context.Context, endpoint string, payload any) (workflow.RunHandle, error) {
	args := m.Called(ctx, endpoint, payload)
	if handle, ok := args.Get(0).(workflow.RunHandle); ok {
		return handle, args.Error(1)
	}
	return workflow.RunHandle{}, args.Error(1)
}

// MockActivityStore implements booksurf.ActivityStore
type MockActivityStore struct {
	mock.Mock
}

func (m *MockActivityStore) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*booksurf.User, error) {
	args := m.Called(ctx, id)
	if user, ok := args.Get(0).(*booksurf.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockActivityStore) TouchActivity(ctx context.Context, id uuid.UUID, day time.Time) error {
	args := m.Called(ctx, id, day)
	return args.Error(0)
}

// MockLimiter implements booksurf.RateLimiter
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Limit(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockUsers implements booksurf.Users for the methods the handlers touch.
// The embedded interface covers the rest; calling an unstubbed method
// panics, which is exactly what we want in a test.
type MockUsers struct {
	booksurf.Users
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*booksurf.User, error) {
	args := m.Called(ctx, id)
	if user, ok := args.Get(0).(*booksurf.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*booksurf.User, error) {
	args := m.Called(ctx, email)
	if user, ok := args.Get(0).(*booksurf.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByUniversityID(ctx context.Context, universityID int64) (*booksurf.User, error) {
	args := m.Called(ctx, universityID)
	if user, ok := args.Get(0).(*booksurf.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

// RegisterTx echoes the input user when the stub returns (nil, nil), which
// is how the real repository behaves on a clean insert.
func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *booksurf.User) (*booksurf.User, error) {
	args := m.Called(ctx, tx, user)
	if created, ok := args.Get(0).(*booksurf.User); ok {
		return created, args.Error(1)
	}
	if args.Error(1) == nil {
		return user, nil
	}
	return nil, args.Error(1)
}

// MockRepoManager wires a MockUsers into the RepositoryManager shape.
// RunInTx just invokes the function; transactional behavior is the
// repository layer's concern, not the handlers'.
type MockRepoManager struct {
	booksurf.RepositoryManager
	users booksurf.Users
}

func NewMockRepoManager(users booksurf.Users) *MockRepoManager {
	return &MockRepoManager{users: users}
}

func (m *MockRepoManager) Users() booksurf.Users { return m.users }

func (m *MockRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func notFoundErr() error {
	return repository.NewRecordNotFound()
}

// MockContext mocks router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	def := ""
	if len(defaultValue) > 0 {
		def = defaultValue[0]
	}
	args := m.Called(key, def)
	return args.String(0)
}

func (m *MockContext) QueryValues(key string) []string {
	args := m.Called(key)
	if vals, ok := args.Get(0).([]string); ok {
		return vals
	}
	return nil
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) RouteName() string {
	return ""
}

func (m *MockContext) RouteParams() map[string]string {
	return nil
}

func (m *MockContext) LocalsMerge(key any, value map[string]any) map[string]any {
	return nil
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	return nil, nil
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) IP() string {
	return ""
}

func (m *MockContext) SendStatus(code int) error {
	return nil
}

func (m *MockContext) SendStream(r io.Reader) error {
	return nil
}
