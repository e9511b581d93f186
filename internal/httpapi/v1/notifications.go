package v1

import (
	"net/http"
	"strconv"
)

// GET /v1/notifications?limit=
func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	toJSON(w, http.StatusOK, listNotificationsResponse{Items: s.notices.Recent(s.owner(r), limit)})
}
