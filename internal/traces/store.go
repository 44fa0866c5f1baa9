package traces

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	columnOwnerID    = "owner_id"
	columnEntityURL  = "entity_url"
	columnID         = "id"
	orderNewestFirst = "created_at DESC, id DESC"
	queryOwner       = columnOwnerID + " = ?"
	queryEntityURL   = columnEntityURL + " = ?"
	queryID          = columnID + " = ?"
	defaultFindLimit = 10
	maximumFindLimit = 1000
)

var (
	errMissingDatabase   = errors.New("traces: database handle is required")
	errMissingIDProvider = errors.New("traces: id provider is required")
)

// StoreConfig describes the dependencies of the report store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
}

// Store persists traces and answers the read queries the aggregation layer needs.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
}

// NewStore constructs a Store backed by the provided GORM handle.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
	}, nil
}

// Insert validates the submission, assigns id and creation time, and persists it.
// Validation failures are returned as *ValidationError before touching storage.
func (s *Store) Insert(ctx context.Context, submission Submission) (Trace, error) {
	if s == nil || s.db == nil {
		return Trace{}, errMissingDatabase
	}
	trace, err := submission.Validate()
	if err != nil {
		return Trace{}, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Trace{}, fmt.Errorf("traces: generate id: %w", err)
	}
	trace.ID = id
	trace.CreatedAt = s.clock().UTC()

	if err := s.db.WithContext(ctx).Create(&trace).Error; err != nil {
		return Trace{}, fmt.Errorf("traces: insert: %w", err)
	}
	return trace, nil
}

// FindByOwner returns every trace submitted by ownerID, newest first.
func (s *Store) FindByOwner(ctx context.Context, ownerID string) ([]Trace, error) {
	if s == nil || s.db == nil {
		return nil, errMissingDatabase
	}
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		return nil, invalid(FieldOwner, "is required")
	}
	records := make([]Trace, 0)
	if err := s.db.WithContext(ctx).
		Where(queryOwner, owner).
		Order(orderNewestFirst).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("traces: find by owner: %w", err)
	}
	return records, nil
}

// FindRecent returns at most limit traces across all owners, newest first.
// Non-positive limits fall back to the feed default.
func (s *Store) FindRecent(ctx context.Context, limit int) ([]Trace, error) {
	if s == nil || s.db == nil {
		return nil, errMissingDatabase
	}
	if limit <= 0 {
		limit = defaultFindLimit
	}
	if limit > maximumFindLimit {
		limit = maximumFindLimit
	}
	records := make([]Trace, 0, limit)
	if err := s.db.WithContext(ctx).
		Order(orderNewestFirst).
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("traces: find recent: %w", err)
	}
	return records, nil
}

// FindByEntityURL returns the traces whose entity url equals url exactly.
func (s *Store) FindByEntityURL(ctx context.Context, url string) ([]Trace, error) {
	if s == nil || s.db == nil {
		return nil, errMissingDatabase
	}
	records := make([]Trace, 0)
	if err := s.db.WithContext(ctx).
		Where(queryEntityURL, url).
		Order(orderNewestFirst).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("traces: find by entity url: %w", err)
	}
	return records, nil
}

// FindByID loads a single trace, returning ErrTraceNotFound when absent.
func (s *Store) FindByID(ctx context.Context, id string) (Trace, error) {
	if s == nil || s.db == nil {
		return Trace{}, errMissingDatabase
	}
	var record Trace
	err := s.db.WithContext(ctx).Where(queryID, strings.TrimSpace(id)).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Trace{}, ErrTraceNotFound
	}
	if err != nil {
		return Trace{}, fmt.Errorf("traces: find by id: %w", err)
	}
	return record, nil
}
