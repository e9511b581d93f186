package v1

import (
	"context"
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinoosan/expenses/internal/errs"
	"github.com/tinoosan/expenses/internal/ledger"
)

const (
	ctxKeyFields    ctxKey = "validatedFields"
	ctxKeyExpenseID ctxKey = "expenseID"
)

// decodeFields parses the expense body and stores ledger.Fields in the request
// context. Malformed JSON is a 400; a bad date is a 422 like any other invalid field.
func (s *Server) decodeFields(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		var req expenseRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			badRequest(w, "invalid JSON: "+err.Error())
			return
		}
		f := ledger.Fields{Amount: req.Amount, Category: req.Category, Description: req.Description}
		if req.Date != "" {
			d, err := ledger.ParseDate(req.Date)
			if err != nil {
				writeErr(w, http.StatusUnprocessableEntity, err.Error(), errs.Code(err))
				return
			}
			f.Date = d
		}
		ctx := context.WithValue(r.Context(), ctxKeyFields, f)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// expenseID parses the {id} path parameter.
func (s *Server) expenseID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			badRequest(w, "invalid expense id")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyExpenseID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// owner resolves whose ledger a request addresses.
func (s *Server) owner(r *http.Request) string {
	if s.fixedOwner != "" {
		return s.fixedOwner
	}
	return ownerFrom(r.Context())
}
