package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/contributors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidIdentity indicates the identity did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrUserNotFound indicates that no user exists for the requested id.
	ErrUserNotFound = errors.New("users: user not found")
)

const (
	queryUserID           = "id = ?"
	orderLeaderboard      = "report_count DESC, created_at ASC, id ASC"
	defaultLeaderboardCap = 10
)

// ServiceConfig describes the dependencies required for user resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages contributor records and their report counters.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
		cache:  sync.Map{},
	}, nil
}

// EnsureUser returns the user id for a resolved token identity, creating the user
// record the first time the identity is seen and refreshing its display name after.
func (s *Service) EnsureUser(ctx context.Context, identity auth.Identity) (string, error) {
	userID := normalize(identity.UserID)
	if userID == "" {
		return "", ErrInvalidIdentity
	}
	displayName := normalizeDisplayName(identity.DisplayName)

	if cachedName, ok := s.cache.Load(userID); ok {
		if name, ok := cachedName.(string); ok && (displayName == "" || name == displayName) {
			return userID, nil
		}
	}

	var user User
	err := s.db.WithContext(ctx).Where(queryUserID, userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		now := s.now()
		user = User{
			ID:          userID,
			DisplayName: displayName,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	} else if displayName != "" && displayName != user.DisplayName {
		updateErr := s.db.WithContext(ctx).Model(&User{}).
			Where(queryUserID, userID).
			Updates(map[string]interface{}{
				"display_name": displayName,
				"updated_at":   s.now(),
			}).
			Error
		if updateErr != nil {
			// stored name is stale; leave the cache empty so the next request retries
			s.logger.Warn("display name refresh failed", zap.String("user_id", userID), zap.Error(updateErr))
			return userID, nil
		}
		user.DisplayName = displayName
	}

	s.cache.Store(userID, user.DisplayName)
	return userID, nil
}

// IncrementReportCount adds one to the user's report counter. Callers treat it as
// fire-and-forget; a retried increment may double count.
func (s *Service) IncrementReportCount(ctx context.Context, userID string) error {
	id := normalize(userID)
	if id == "" {
		return ErrInvalidIdentity
	}
	result := s.db.WithContext(ctx).Model(&User{}).
		Where(queryUserID, id).
		Updates(map[string]interface{}{
			"report_count": gorm.Expr("report_count + ?", 1),
			"updated_at":   s.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Get loads a single user.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where(queryUserID, normalize(userID)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// TopContributors returns up to limit users with the most reports, as ranking input.
// Ties come back oldest account first.
func (s *Service) TopContributors(ctx context.Context, limit int) ([]contributors.Contributor, error) {
	if limit <= 0 {
		limit = defaultLeaderboardCap
	}
	var records []User
	if err := s.db.WithContext(ctx).
		Order(orderLeaderboard).
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	result := make([]contributors.Contributor, 0, len(records))
	for _, record := range records {
		result = append(result, record.Contributor())
	}
	return result, nil
}

// Contributor converts the record into leaderboard input.
func (u User) Contributor() contributors.Contributor {
	return contributors.Contributor{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		ReportCount: u.ReportCount,
	}
}
