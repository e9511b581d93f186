package v1

import (
	"github.com/tinoosan/expenses/internal/ledger"
	"github.com/tinoosan/expenses/internal/notify"
	"github.com/tinoosan/expenses/internal/service/expense"
)

// expenseRequest is the body of POST /v1/expenses and PUT /v1/expenses/{id}.
type expenseRequest struct {
	Amount      *float64        `json:"amount"`
	Category    ledger.Category `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
}

type listExpensesResponse struct {
	Items []ledger.Expense `json:"items"`
	Stale bool             `json:"stale"`
	Error string           `json:"error,omitempty"`
	Code  string           `json:"code,omitempty"`
}

type summaryResponse struct {
	expense.Report
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type listNotificationsResponse struct {
	Items []notify.Notice `json:"items"`
}
