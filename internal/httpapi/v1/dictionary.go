package v1

import (
	"net/http"

	"github.com/tinoosan/expenses/internal/dictionary"
)

// GET /v1/dictionary/categories
func (s *Server) getCategoriesDictionary(w http.ResponseWriter, r *http.Request) {
	out := struct {
		Items []dictionary.CategoryDef `json:"items"`
	}{Items: dictionary.Categories()}
	toJSON(w, http.StatusOK, out)
}
