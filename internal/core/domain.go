package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and display format of expense dates.
const DateLayout = "2006-01-02"

const maxDescriptionLen = 200

type (
	Date struct {
		time.Time
	}

	// Expense is a record as known by the remote service.
	Expense struct {
		ID          int64
		LocalID     int // 1-based display position, recomputed on every load
		Description string
		Amount      decimal.Decimal
		Date        Date
	}

	// NewExpense is an expense the service has not assigned an id to yet.
	NewExpense struct {
		Description string
		Amount      decimal.Decimal
		Date        Date
	}

	// ExpensePatch holds the fields to change on an existing expense.
	// A nil field is left untouched by the service.
	ExpensePatch struct {
		Description *string
		Amount      *decimal.Decimal
		Date        *Date
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	ErrEmptyPatch         = errors.New("patch changes no field")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate accepts YYYY-MM-DD and, for servers that send timestamps, RFC 3339.
// The time of day is dropped.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Equal compares calendar dates only.
func (d Date) Equal(o Date) bool {
	return d.String() == o.String()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
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

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func validateAmount(a decimal.Decimal) error {
	if !a.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (e NewExpense) Validate() error {
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	if err := validateAmount(e.Amount); err != nil {
		return err
	}
	return e.Date.Validate()
}

func (p ExpensePatch) IsEmpty() bool {
	return p.Description == nil && p.Amount == nil && p.Date == nil
}

func (p ExpensePatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.Amount != nil {
		if err := validateAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns e with the patch fields copied over it.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}

// Equal reports whether two expenses hold the same values. Amounts are
// compared numerically, so 7.5 equals 7.50.
func (e Expense) Equal(o Expense) bool {
	return e.ID == o.ID &&
		e.LocalID == o.LocalID &&
		e.Description == o.Description &&
		e.Amount.Equal(o.Amount) &&
		e.Date.Equal(o.Date)
}

// EqualLists compares two expense lists element by element.
func EqualLists(a, b []Expense) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
