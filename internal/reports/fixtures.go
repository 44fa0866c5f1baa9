package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/auth"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var errEmptyFixtures = errors.New("reports: fixture document has no traces")

// Fixture is one seed trace as written in a fixtures document.
type Fixture struct {
	OwnerID     string `yaml:"owner"`
	OwnerName   string `yaml:"owner_name"`
	EntityURL   string `yaml:"entity_url"`
	ProductName string `yaml:"product_name"`
	Category    string `yaml:"category"`
	Price       string `yaml:"price"`
	Currency    string `yaml:"currency"`
	Outcome     string `yaml:"outcome"`
}

type fixtureDocument struct {
	Traces []Fixture `yaml:"traces"`
}

// LoadFixtures decodes a YAML fixtures document:
//
//	traces:
//	  - owner: user-1
//	    owner_name: Ada
//	    entity_url: https://shop.example
//	    product_name: Desk Lamp
//	    category: home
//	    price: "49.90"
//	    outcome: delivered
func LoadFixtures(reader io.Reader) ([]Fixture, error) {
	var document fixtureDocument
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(&document); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyFixtures
		}
		return nil, fmt.Errorf("reports: decode fixtures: %w", err)
	}
	if len(document.Traces) == 0 {
		return nil, errEmptyFixtures
	}
	return document.Traces, nil
}

// Seed submits every fixture through the regular submission path so report counters
// and validation behave exactly as for live traffic. It stops at the first failure
// and returns how many fixtures were stored before it.
func (s *Service) Seed(ctx context.Context, fixtures []Fixture) (int, error) {
	stored := 0
	for index, fixture := range fixtures {
		userID, err := s.users.EnsureUser(ctx, auth.Identity{
			UserID:      fixture.OwnerID,
			DisplayName: fixture.OwnerName,
		})
		if err != nil {
			s.logError(opSeed, reasonEnsureUserFailed, err, zap.Int("fixture", index))
			return stored, newServiceError(opSeed, reasonEnsureUserFailed, err)
		}

		input := SubmitInput{
			EntityURL:   fixture.EntityURL,
			ProductName: fixture.ProductName,
			Category:    fixture.Category,
			Currency:    fixture.Currency,
			Outcome:     fixture.Outcome,
		}
		if raw := strings.TrimSpace(fixture.Price); raw != "" {
			price, err := decimal.NewFromString(raw)
			if err != nil {
				return stored, newServiceError(opSeed, reasonInvalidTrace, fmt.Errorf("fixture %d: price %q: %w", index, raw, err))
			}
			input.Price = &price
		}

		if _, err := s.Submit(ctx, userID, input); err != nil {
			return stored, fmt.Errorf("fixture %d: %w", index, err)
		}
		stored++
	}
	return stored, nil
}
