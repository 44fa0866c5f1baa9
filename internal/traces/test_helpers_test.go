package traces

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

type steppingClock struct {
	current time.Time
	step    time.Duration
}

func (c *steppingClock) Now() time.Time {
	value := c.current
	c.current = c.current.Add(c.step)
	return value
}

func newTestStore(t *testing.T, ids []string, clock func() time.Time) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "traces.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Trace{}); err != nil {
		t.Fatalf("failed to migrate traces: %v", err)
	}
	store, err := NewStore(StoreConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &staticIDGenerator{ids: ids},
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store, db
}

func mustPrice(t *testing.T, value string) *decimal.Decimal {
	t.Helper()
	price, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("invalid price %q: %v", value, err)
	}
	return &price
}
