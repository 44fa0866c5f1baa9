package reports

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/contributors"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/traces"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

var errBackendDown = errors.New("backend down")

type testEnv struct {
	service  *Service
	store    *traces.Store
	users    *users.Service
	db       *gorm.DB
	recorder *countingRecorder
	logs     *observer.ObservedLogs
}

type countingRecorder struct {
	mu        sync.Mutex
	submitted map[string]int
	failures  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{submitted: map[string]int{}, failures: map[string]int{}}
}

func (r *countingRecorder) RecordTraceSubmitted(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted[outcome]++
}

func (r *countingRecorder) RecordFetchFailure(operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[operation]++
}

func (r *countingRecorder) failuresFor(operation string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[operation]
}

type steppingClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	value := c.current
	c.current = c.current.Add(c.step)
	return value
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "reports.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&traces.Trace{}, &users.User{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	clock := &steppingClock{current: now, step: time.Second}
	store, err := traces.NewStore(traces.StoreConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: traces.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock.Now})
	if err != nil {
		t.Fatalf("failed to build user service: %v", err)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	recorder := newCountingRecorder()
	service, err := NewService(ServiceConfig{
		Store:    store,
		Users:    userService,
		Logger:   zap.New(core),
		Recorder: recorder,
		Clock: func() time.Time {
			return now.Add(time.Hour)
		},
	})
	if err != nil {
		t.Fatalf("failed to build reports service: %v", err)
	}
	return &testEnv{
		service:  service,
		store:    store,
		users:    userService,
		db:       db,
		recorder: recorder,
		logs:     logs,
	}
}

func (e *testEnv) ensureUser(t *testing.T, userID, displayName string) string {
	t.Helper()
	id, err := e.users.EnsureUser(context.Background(), auth.Identity{UserID: userID, DisplayName: displayName})
	if err != nil {
		t.Fatalf("failed to ensure user %q: %v", userID, err)
	}
	return id
}

func (e *testEnv) submit(t *testing.T, userID, url string, outcome traces.Outcome, price string) traces.Trace {
	t.Helper()
	stored, err := e.service.Submit(context.Background(), userID, SubmitInput{
		EntityURL:   url,
		ProductName: "Item",
		Category:    string(traces.CategoryElectronics),
		Price:       mustPrice(t, price),
		Outcome:     string(outcome),
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return stored
}

func mustPrice(t *testing.T, value string) *decimal.Decimal {
	t.Helper()
	price, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("invalid price %q: %v", value, err)
	}
	return &price
}

type failingStore struct{}

func (failingStore) Insert(context.Context, traces.Submission) (traces.Trace, error) {
	return traces.Trace{}, errBackendDown
}

func (failingStore) FindByOwner(context.Context, string) ([]traces.Trace, error) {
	return nil, errBackendDown
}

func (failingStore) FindRecent(context.Context, int) ([]traces.Trace, error) {
	return nil, errBackendDown
}

func (failingStore) FindByEntityURL(context.Context, string) ([]traces.Trace, error) {
	return nil, errBackendDown
}

func (failingStore) FindByID(context.Context, string) (traces.Trace, error) {
	return traces.Trace{}, errBackendDown
}

type failingUsers struct{}

func (failingUsers) EnsureUser(context.Context, auth.Identity) (string, error) {
	return "", errBackendDown
}

func (failingUsers) IncrementReportCount(context.Context, string) error {
	return errBackendDown
}

func (failingUsers) Get(context.Context, string) (users.User, error) {
	return users.User{}, errBackendDown
}

func (failingUsers) TopContributors(context.Context, int) ([]contributors.Contributor, error) {
	return nil, errBackendDown
}
