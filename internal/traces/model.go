package traces

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category enumerates the product categories a trace can be filed under.
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryFashion     Category = "fashion"
	CategoryHome        Category = "home"
	CategoryServices    Category = "services"
	CategoryLuxury      Category = "luxury"
	CategorySoftware    Category = "software"
	CategoryOther       Category = "other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryElectronics,
	CategoryFashion,
	CategoryHome,
	CategoryServices,
	CategoryLuxury,
	CategorySoftware,
	CategoryOther,
}

// Currency enumerates the supported ISO currency codes.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyINR Currency = "INR"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
)

// DefaultCurrency applies when a submission omits the currency.
const DefaultCurrency = CurrencyUSD

// Currencies lists every accepted currency.
var Currencies = []Currency{CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyINR, CurrencyCAD, CurrencyAUD}

// Outcome describes how a reported transaction ended.
type Outcome string

const (
	// OutcomeDelivered means the order arrived as described.
	OutcomeDelivered Outcome = "delivered"
	// OutcomePartial covers partial deliveries and wrong items.
	OutcomePartial Outcome = "partial"
	// OutcomeNotDelivered means nothing arrived.
	OutcomeNotDelivered Outcome = "not_delivered"
)

// DefaultOutcome applies when a submission omits the outcome.
const DefaultOutcome = OutcomeDelivered

// Outcomes lists every accepted outcome.
var Outcomes = []Outcome{OutcomeDelivered, OutcomePartial, OutcomeNotDelivered}

const (
	maxIdentifierLength = 190
	maxURLLength        = 2048
	maxProductLength    = 512
)

// Field names reported by ValidationError.
const (
	FieldOwner       = "owner"
	FieldEntityURL   = "entity_url"
	FieldProductName = "product_name"
	FieldCategory    = "category"
	FieldPrice       = "price"
	FieldCurrency    = "currency"
	FieldOutcome     = "outcome"
)

var (
	// ErrInvalidTrace is the sentinel wrapped by every ValidationError.
	ErrInvalidTrace = errors.New("traces: invalid trace")
	// ErrTraceNotFound indicates that no trace exists for a requested id.
	ErrTraceNotFound = errors.New("traces: trace not found")
)

// ValidationError reports the submission field that was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidTrace.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidTrace
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ParseCategory validates raw input against the category enumeration.
func ParseCategory(rawInput string) (Category, error) {
	value := Category(strings.ToLower(strings.TrimSpace(rawInput)))
	if value == "" {
		return "", invalid(FieldCategory, "is required")
	}
	for _, candidate := range Categories {
		if candidate == value {
			return value, nil
		}
	}
	return "", invalid(FieldCategory, fmt.Sprintf("%q is not a recognized category", rawInput))
}

// ParseCurrency validates raw input, falling back to DefaultCurrency when empty.
func ParseCurrency(rawInput string) (Currency, error) {
	value := Currency(strings.ToUpper(strings.TrimSpace(rawInput)))
	if value == "" {
		return DefaultCurrency, nil
	}
	for _, candidate := range Currencies {
		if candidate == value {
			return value, nil
		}
	}
	return "", invalid(FieldCurrency, fmt.Sprintf("%q is not a supported currency", rawInput))
}

// ParseOutcome validates raw input, falling back to DefaultOutcome when empty.
func ParseOutcome(rawInput string) (Outcome, error) {
	value := Outcome(strings.ToLower(strings.TrimSpace(rawInput)))
	if value == "" {
		return DefaultOutcome, nil
	}
	for _, candidate := range Outcomes {
		if candidate == value {
			return value, nil
		}
	}
	return "", invalid(FieldOutcome, fmt.Sprintf("%q is not a recognized outcome", rawInput))
}

// Trace is a single reported transaction outcome. Rows are append-only.
type Trace struct {
	ID          string          `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	OwnerID     string          `gorm:"column:owner_id;size:190;not null;index:idx_traces_owner_created,priority:1" json:"owner_id"`
	EntityURL   string          `gorm:"column:entity_url;size:2048;not null;index" json:"entity_url"`
	ProductName string          `gorm:"column:product_name;size:512;not null" json:"product_name"`
	Category    Category        `gorm:"column:category;size:32;not null" json:"category"`
	Price       decimal.Decimal `gorm:"column:price;type:text;not null" json:"price"`
	Currency    Currency        `gorm:"column:currency;size:3;not null;default:'USD'" json:"currency"`
	Outcome     Outcome         `gorm:"column:outcome;size:32;not null;default:'delivered'" json:"outcome"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null;index;index:idx_traces_owner_created,priority:2" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Trace) TableName() string {
	return "traces"
}

// Submission is the raw, untrusted input for a new trace.
type Submission struct {
	OwnerID     string
	EntityURL   string
	ProductName string
	Category    string
	Price       *decimal.Decimal
	Currency    string
	Outcome     string
}

// Validate normalizes the submission into a Trace without id or timestamp.
func (s Submission) Validate() (Trace, error) {
	owner := strings.TrimSpace(s.OwnerID)
	if owner == "" {
		return Trace{}, invalid(FieldOwner, "is required")
	}
	if len(owner) > maxIdentifierLength {
		return Trace{}, invalid(FieldOwner, fmt.Sprintf("exceeds %d characters", maxIdentifierLength))
	}

	entityURL := strings.TrimSpace(s.EntityURL)
	if entityURL == "" {
		return Trace{}, invalid(FieldEntityURL, "is required")
	}
	if len(entityURL) > maxURLLength {
		return Trace{}, invalid(FieldEntityURL, fmt.Sprintf("exceeds %d characters", maxURLLength))
	}

	productName := strings.TrimSpace(s.ProductName)
	if productName == "" {
		return Trace{}, invalid(FieldProductName, "is required")
	}
	if len(productName) > maxProductLength {
		return Trace{}, invalid(FieldProductName, fmt.Sprintf("exceeds %d characters", maxProductLength))
	}

	category, err := ParseCategory(s.Category)
	if err != nil {
		return Trace{}, err
	}

	if s.Price == nil {
		return Trace{}, invalid(FieldPrice, "is required")
	}
	if s.Price.IsNegative() {
		return Trace{}, invalid(FieldPrice, "must not be negative")
	}

	currency, err := ParseCurrency(s.Currency)
	if err != nil {
		return Trace{}, err
	}

	outcome, err := ParseOutcome(s.Outcome)
	if err != nil {
		return Trace{}, err
	}

	return Trace{
		OwnerID:     owner,
		EntityURL:   entityURL,
		ProductName: productName,
		Category:    category,
		Price:       *s.Price,
		Currency:    currency,
		Outcome:     outcome,
	}, nil
}
