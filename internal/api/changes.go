package api

import (
	"net/http"
	"strconv"

	"github.com/quells/managedmodel/internal/audit"
	"github.com/quells/managedmodel/internal/model"
)

// handleListChanges returns recorded changes, newest first.
// Query parameters: table, action, key, limit, offset.
func (s *Server) handleListChanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Table:  q.Get("table"),
		Action: model.Action(q.Get("action")),
		Key:    q.Get("key"),
	}

	switch filter.Action {
	case "", model.ActionInsert, model.ActionUpdate, model.ActionRemove:
	default:
		writeBadRequest(w, "action must be insert, update or remove")
		return
	}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, name+" must be an integer")
			return
		}
		*dst = n
	}

	result, err := s.changes.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing changes failed", "error", err)
		writeInternalError(w, "failed to list changes")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
