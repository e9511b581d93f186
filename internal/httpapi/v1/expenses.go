package v1

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tinoosan/expenses/internal/errs"
	"github.com/tinoosan/expenses/internal/ledger"
)

// GET /v1/expenses
// A failed load still answers 200 with the last-known items, marked stale.
func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.List(r.Context(), s.owner(r))
	resp := listExpensesResponse{Items: snap.Items, Stale: snap.Stale}
	if resp.Items == nil {
		resp.Items = []ledger.Expense{}
	}
	if err != nil {
		resp.Error, resp.Code = err.Error(), errs.Code(err)
	}
	toJSON(w, http.StatusOK, resp)
}

// POST /v1/expenses
func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	f, _ := r.Context().Value(ctxKeyFields).(ledger.Fields)
	created, err := s.svc.Create(r.Context(), s.owner(r), f)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, created)
}

// PUT /v1/expenses/{id}
func (s *Server) updateExpense(w http.ResponseWriter, r *http.Request) {
	f, _ := r.Context().Value(ctxKeyFields).(ledger.Fields)
	id, _ := r.Context().Value(ctxKeyExpenseID).(uuid.UUID)
	updated, err := s.svc.Update(r.Context(), s.owner(r), id, f)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, updated)
}

// DELETE /v1/expenses/{id}
func (s *Server) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, _ := r.Context().Value(ctxKeyExpenseID).(uuid.UUID)
	if err := s.svc.Delete(r.Context(), s.owner(r), id); err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/expenses/summary
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Summary(r.Context(), s.owner(r))
	resp := summaryResponse{Report: rep}
	if err != nil {
		if !rep.Stale {
			s.writeServiceErr(w, r, err)
			return
		}
		resp.Error, resp.Code = err.Error(), errs.Code(err)
	}
	toJSON(w, http.StatusOK, resp)
}
