package api

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"expensectl/internal/core"
)

// expenseDTO is an expense as it appears on the wire. Amount is a JSON number;
// quoted numbers are accepted as well.
type expenseDTO struct {
	ID          int64       `json:"id"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Date        core.Date   `json:"date"`
}

// listResponse is the body of GET /expenses.
type listResponse struct {
	Expenses []expenseDTO `json:"expenses"`
}

// createRequest is the body of POST /expenses.
type createRequest struct {
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Date        core.Date   `json:"date"`
}

// patchRequest is the body of PUT /expenses/{id}; only changed fields are sent.
type patchRequest struct {
	Description *string      `json:"description,omitempty"`
	Amount      *json.Number `json:"amount,omitempty"`
	Date        *core.Date   `json:"date,omitempty"`
}

// errorResponse covers the usual shapes of an API error body.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (d expenseDTO) toCore() (core.Expense, error) {
	amount, err := decimal.NewFromString(d.Amount.String())
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w %q", core.ErrInvalidAmount, d.Amount)
	}
	return core.Expense{
		ID:          d.ID,
		Description: d.Description,
		Amount:      amount,
		Date:        d.Date,
	}, nil
}
