package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(withRequestID, s.accessLog, middleware.RequestSize(maxRequestBodySize))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/schema", s.handleSchema)

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", s.handleListTables)
			r.Route("/{table}", func(r chi.Router) {
				r.Get("/", s.handleGetTable)
				r.Get("/count", s.handleCountTable)
				r.Get("/rows", s.handleTableRows)
			})
		})

		if s.changes != nil {
			r.Get("/changes", s.handleListChanges)
		}

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}
