package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/expenses/internal/errs"
)

// LocalOwner is the owner recorded on every expense kept by the local store.
const LocalOwner = "local"

// Category classifies an expense. The set is closed.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryShopping      Category = "Shopping"
	CategoryBills         Category = "Bills"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealthcare    Category = "Healthcare"
	CategoryOther         Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryBills,
	CategoryEntertainment,
	CategoryHealthcare,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Date is a calendar date without time of day, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate truncates t to its calendar date in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts a bare calendar date or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", errs.ErrValidation, s)
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Expense is a single recorded spending event.
// The JSON shape is also the on-disk format of the local store.
type Expense struct {
	ID          uuid.UUID  `json:"id"`
	Owner       string     `json:"user_id"`
	Amount      float64    `json:"amount"`
	Category    Category   `json:"category"`
	Description string     `json:"description"`
	Date        Date       `json:"date"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Fields is the mutable part of an expense, supplied on create and update.
type Fields struct {
	Amount      *float64 `json:"amount"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Date        Date     `json:"date"`
}

// Validate rejects incomplete or malformed input before any store is touched.
func (f Fields) Validate() error {
	var problems []string
	switch {
	case f.Amount == nil:
		problems = append(problems, "amount is required")
	case math.IsNaN(*f.Amount) || math.IsInf(*f.Amount, 0):
		problems = append(problems, "amount must be a finite number")
	case *f.Amount < 0:
		problems = append(problems, "amount must be >= 0")
	}
	if f.Category == "" {
		problems = append(problems, "category is required")
	} else if !f.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", f.Category))
	}
	if f.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errs.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// Apply overwrites the mutable fields of e with f. Identity and timestamps are untouched.
func (e Expense) Apply(f Fields) Expense {
	if f.Amount != nil {
		e.Amount = *f.Amount
	}
	e.Category = f.Category
	e.Description = f.Description
	e.Date = f.Date
	return e
}

// SortByDateDesc orders expenses newest first. Equal dates keep their input order.
func SortByDateDesc(items []Expense) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date.Time)
	})
}

// Amount is a small helper for building Fields.
func Amount(v float64) *float64 { return &v }
