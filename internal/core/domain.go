package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidTemporalInput = errors.New("invalid date or time format")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrNoBudgetSet          = errors.New("no budget set for this month")
	ErrNotFound             = errors.New("not found")
	ErrEmptyUser            = errors.New("empty user identifier")
)

// BudgetExceededError is the rejection outcome of an admission check.
// It carries the figures the caller needs to report back to the user.
type BudgetExceededError struct {
	Budget    Money
	Spent     Money
	Remaining Money
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("expense exceeds budget: budget=%s spent=%s remaining=%s",
		e.Budget, e.Spent, e.Remaining)
}

type (
	// Budget caps a user's spend for one civil month. At most one row
	// exists per (user, month, year).
	Budget struct {
		ID        int64
		UserID    string
		Amount    Money
		Month     int
		Year      int
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Category is seeded reference data, read-only at runtime.
	Category struct {
		ID    int64
		Name  string
		Color string
	}

	// Expense records a single spend. DateTime is the UTC instant derived
	// from the civil date+time the user entered in the fixed zone.
	Expense struct {
		ID          int64
		UserID      string
		DateTime    time.Time
		Amount      Money
		CategoryID  int64
		Description string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}
)

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUser
	}
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	return b.Amount.Validate()
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyUser
	}
	if e.DateTime.IsZero() {
		return ErrInvalidTemporalInput
	}
	if e.CategoryID <= 0 {
		return errors.New("missing category")
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return e.Amount.Validate()
}
