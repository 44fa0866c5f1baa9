package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/contributors"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/traces"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/trust"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/users"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrStoreUnavailable marks a failed fetch from the report store or user directory.
	ErrStoreUnavailable = errors.New("reports: store unavailable")
	// ErrNotFound indicates the requested trace does not exist.
	ErrNotFound = errors.New("reports: not found")
	// ErrMissingUserID indicates an operation that needs a resolved identity got none.
	ErrMissingUserID = errors.New("reports: user identifier is required")

	errMissingStore = errors.New("reports: trace store is required")
	errMissingUsers = errors.New("reports: user directory is required")
	noOpLogger      = zap.NewNop()
)

// ServiceError carries a dotted operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the machine-readable error code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "reports.service.new"
	opSubmit      = "reports.submit"
	opMyTraces    = "reports.my_traces"
	opRecentFeed  = "reports.recent_feed"
	opSnapshot    = "reports.snapshot"
	opAdvice      = "reports.advice"
	opDashboard   = "reports.dashboard"
	opLeaderboard = "reports.leaderboard"
	opProfile     = "reports.profile"
	opShare       = "reports.share"
	opSeed        = "reports.seed"
)

const (
	reasonMissingStore     = "missing_store"
	reasonMissingUsers     = "missing_users"
	reasonMissingUserID    = "missing_user_id"
	reasonInvalidTrace     = "invalid_trace"
	reasonInsertFailed     = "insert_failed"
	reasonQueryFailed      = "query_failed"
	reasonIncrementFailed  = "increment_failed"
	reasonUserLookupFailed = "user_lookup_failed"
	reasonNotFound         = "not_found"
	reasonEnsureUserFailed = "ensure_user_failed"
)

const (
	defaultFeedLimit        = 10
	defaultLeaderboardLimit = 10
	defaultDashboardWindow  = 500
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

func unavailable(cause error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, cause)
}

// TraceStore is the report store boundary.
type TraceStore interface {
	Insert(ctx context.Context, submission traces.Submission) (traces.Trace, error)
	FindByOwner(ctx context.Context, ownerID string) ([]traces.Trace, error)
	FindRecent(ctx context.Context, limit int) ([]traces.Trace, error)
	FindByEntityURL(ctx context.Context, url string) ([]traces.Trace, error)
	FindByID(ctx context.Context, id string) (traces.Trace, error)
}

// UserDirectory is the user boundary: identity records and report counters.
type UserDirectory interface {
	EnsureUser(ctx context.Context, identity auth.Identity) (string, error)
	IncrementReportCount(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (users.User, error)
	TopContributors(ctx context.Context, limit int) ([]contributors.Contributor, error)
}

// Recorder receives domain events for metrics.
type Recorder interface {
	RecordTraceSubmitted(outcome string)
	RecordFetchFailure(operation string)
}

type noOpRecorder struct{}

func (noOpRecorder) RecordTraceSubmitted(string) {}
func (noOpRecorder) RecordFetchFailure(string)   {}

// ServiceConfig describes the dependencies of the reports service.
type ServiceConfig struct {
	Store            TraceStore
	Users            UserDirectory
	Logger           *zap.Logger
	Recorder         Recorder
	Clock            func() time.Time
	FeedLimit        int
	LeaderboardLimit int
	// DashboardWindow bounds how many recent traces feed network-wide aggregates.
	DashboardWindow int
}

// Service implements every user-facing report operation on top of the store, the
// user directory and the trust aggregation functions.
type Service struct {
	store            TraceStore
	users            UserDirectory
	logger           *zap.Logger
	recorder         Recorder
	clock            func() time.Time
	feedLimit        int
	leaderboardLimit int
	dashboardWindow  int
}

// NewService validates dependencies and applies defaults.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, reasonMissingStore, errMissingStore)
	}
	if cfg.Users == nil {
		return nil, newServiceError(opServiceNew, reasonMissingUsers, errMissingUsers)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	var recorder Recorder = noOpRecorder{}
	if cfg.Recorder != nil {
		recorder = cfg.Recorder
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:            cfg.Store,
		users:            cfg.Users,
		logger:           logger,
		recorder:         recorder,
		clock:            clock,
		feedLimit:        positiveOr(cfg.FeedLimit, defaultFeedLimit),
		leaderboardLimit: positiveOr(cfg.LeaderboardLimit, defaultLeaderboardLimit),
		dashboardWindow:  positiveOr(cfg.DashboardWindow, defaultDashboardWindow),
	}, nil
}

// SubmitInput is the caller-supplied part of a new trace; the owner comes from the
// resolved identity.
type SubmitInput struct {
	EntityURL   string
	ProductName string
	Category    string
	Price       *decimal.Decimal
	Currency    string
	Outcome     string
}

// Submit stores a trace for userID and bumps the user's report counter. A failed
// counter update is logged and does not fail the submission.
func (s *Service) Submit(ctx context.Context, userID string, input SubmitInput) (traces.Trace, error) {
	owner := strings.TrimSpace(userID)
	if owner == "" {
		return traces.Trace{}, newServiceError(opSubmit, reasonMissingUserID, ErrMissingUserID)
	}

	stored, err := s.store.Insert(ctx, traces.Submission{
		OwnerID:     owner,
		EntityURL:   input.EntityURL,
		ProductName: input.ProductName,
		Category:    input.Category,
		Price:       input.Price,
		Currency:    input.Currency,
		Outcome:     input.Outcome,
	})
	if err != nil {
		if errors.Is(err, traces.ErrInvalidTrace) {
			return traces.Trace{}, newServiceError(opSubmit, reasonInvalidTrace, err)
		}
		s.logError(opSubmit, reasonInsertFailed, err, zap.String("user_id", owner))
		return traces.Trace{}, newServiceError(opSubmit, reasonInsertFailed, err)
	}

	if err := s.users.IncrementReportCount(ctx, owner); err != nil {
		s.loggerOrDefault().Warn("report count increment failed",
			zap.String("operation", opSubmit),
			zap.String("reason", reasonIncrementFailed),
			zap.String("user_id", owner),
			zap.String("trace_id", stored.ID),
			zap.Error(err))
	}
	s.recorder.RecordTraceSubmitted(string(stored.Outcome))

	return stored, nil
}

// MyTraces returns the caller's own traces, newest first.
func (s *Service) MyTraces(ctx context.Context, userID string) ([]traces.Trace, error) {
	owner := strings.TrimSpace(userID)
	if owner == "" {
		return nil, newServiceError(opMyTraces, reasonMissingUserID, ErrMissingUserID)
	}
	records, err := s.store.FindByOwner(ctx, owner)
	if err != nil {
		s.recordFetchFailure(opMyTraces, reasonQueryFailed, err, zap.String("user_id", owner))
		return nil, newServiceError(opMyTraces, reasonQueryFailed, unavailable(err))
	}
	return records, nil
}

// RecentFeed returns the newest traces across the network.
func (s *Service) RecentFeed(ctx context.Context) ([]traces.Trace, error) {
	records, err := s.store.FindRecent(ctx, s.feedLimit)
	if err != nil {
		s.recordFetchFailure(opRecentFeed, reasonQueryFailed, err)
		return nil, newServiceError(opRecentFeed, reasonQueryFailed, unavailable(err))
	}
	return records, nil
}

// Snapshot summarizes one entity by exact url. Fetch failures degrade to the
// new-entity snapshot.
func (s *Service) Snapshot(ctx context.Context, url string) trust.Snapshot {
	records, err := s.store.FindByEntityURL(ctx, url)
	if err != nil {
		s.recordFetchFailure(opSnapshot, reasonQueryFailed, err, zap.String("entity_url", url))
		records = nil
	}
	return trust.SnapshotFor(url, records)
}

// Advice classifies a candidate url against the recent network window. ok is false
// when the candidate is too short to produce advice.
func (s *Service) Advice(ctx context.Context, candidate string) (trust.Advice, bool) {
	if len(strings.TrimSpace(candidate)) < trust.MinimumAdviceCandidateLength {
		return trust.Advice{}, false
	}
	return trust.Advise(candidate, s.networkWindow(ctx, opAdvice))
}

// Dashboard computes filtered network metrics over the recent window.
func (s *Service) Dashboard(ctx context.Context, filter trust.DashboardFilter) trust.DashboardMetrics {
	return trust.Dashboard(s.networkWindow(ctx, opDashboard), filter)
}

// Leaderboard ranks the top contributors. Fetch failures degrade to an empty board.
func (s *Service) Leaderboard(ctx context.Context) []contributors.Standing {
	top, err := s.users.TopContributors(ctx, s.leaderboardLimit)
	if err != nil {
		s.recordFetchFailure(opLeaderboard, reasonQueryFailed, err)
		top = nil
	}
	return contributors.Rank(top)
}

// Profile is a contributor's own standing and metrics.
type Profile struct {
	UserID      string
	DisplayName string
	ReportCount int
	Tier        contributors.Tier
	Level       contributors.Level
	Metrics     trust.ProfileMetrics
}

// Profile assembles the caller's tier, level and personal metrics. Fetch failures
// degrade to zeroed values.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	owner := strings.TrimSpace(userID)
	if owner == "" {
		return Profile{}, newServiceError(opProfile, reasonMissingUserID, ErrMissingUserID)
	}

	profile := Profile{UserID: owner}
	user, err := s.users.Get(ctx, owner)
	if err != nil {
		s.recordFetchFailure(opProfile, reasonUserLookupFailed, err, zap.String("user_id", owner))
	} else {
		profile.DisplayName = user.DisplayName
		profile.ReportCount = user.ReportCount
	}

	mine, err := s.store.FindByOwner(ctx, owner)
	if err != nil {
		s.recordFetchFailure(opProfile, reasonQueryFailed, err, zap.String("user_id", owner))
		mine = nil
	}

	profile.Tier = contributors.TierFor(profile.ReportCount)
	profile.Level = contributors.LevelFor(profile.ReportCount)
	profile.Metrics = trust.Profile(mine, s.networkWindow(ctx, opProfile), s.clock())
	return profile, nil
}

// ShareText renders the share summary for a stored trace.
func (s *Service) ShareText(ctx context.Context, traceID string) (string, error) {
	record, err := s.store.FindByID(ctx, traceID)
	if errors.Is(err, traces.ErrTraceNotFound) {
		return "", newServiceError(opShare, reasonNotFound, ErrNotFound)
	}
	if err != nil {
		s.recordFetchFailure(opShare, reasonQueryFailed, err, zap.String("trace_id", traceID))
		return "", newServiceError(opShare, reasonQueryFailed, unavailable(err))
	}
	return trust.ShareText(record), nil
}

func (s *Service) networkWindow(ctx context.Context, operation string) []traces.Trace {
	records, err := s.store.FindRecent(ctx, s.dashboardWindow)
	if err != nil {
		s.recordFetchFailure(operation, reasonQueryFailed, err)
		return nil
	}
	return records
}

func (s *Service) recordFetchFailure(operation, reason string, err error, fields ...zap.Field) {
	s.recorder.RecordFetchFailure(operation)
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Warn("report fetch failed", attrs...)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("reports service error", attrs...)
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
