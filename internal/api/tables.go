package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quells/managedmodel/internal/infrastructure/database"
	"github.com/quells/managedmodel/internal/model"
)

type healthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version,omitempty"`
	SchemaVersion int           `json:"schema_version"`
	Executor      executorStats `json:"executor"`
	Clients       int           `json:"websocket_clients"`
}

type executorStats struct {
	Executed     uint64 `json:"executed"`
	Failed       uint64 `json:"failed"`
	Queued       int    `json:"queued"`
	OpenConns    int    `json:"open_connections"`
	InUseConns   int    `json:"in_use_connections"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
}

func newExecutorStats(st database.Stats) executorStats {
	return executorStats{
		Executed:     st.Executed,
		Failed:       st.Failed,
		Queued:       st.Queued,
		OpenConns:    st.Pool.OpenConnections,
		InUseConns:   st.Pool.InUse,
		WaitCount:    st.Pool.WaitCount,
		WaitDuration: st.Pool.WaitDuration.String(),
	}
}

type fieldJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type tableJSON struct {
	Name   string      `json:"name"`
	Fields []fieldJSON `json:"fields"`
}

func newTableJSON(name string, fields []model.FieldDescriptor) tableJSON {
	out := tableJSON{Name: name, Fields: make([]fieldJSON, len(fields))}
	for i, f := range fields {
		out.Fields[i] = fieldJSON{Name: f.Name, Type: f.Type.String()}
	}
	return out
}

// handleHealth reports database reachability, schema version and executor counters.
// Returns 503 when the database does not answer.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Version:  s.version,
		Executor: newExecutorStats(s.db.Stats()),
		Clients:  s.hub.ClientCount(),
	}

	if err := s.db.HealthCheck(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	version, err := s.db.SchemaVersion(r.Context())
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	resp.SchemaVersion = version

	writeJSON(w, http.StatusOK, resp)
}

// handleSchema returns the schema version and every registered table with its fields.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	version, err := s.db.SchemaVersion(r.Context())
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}

	names := s.catalog.Tables()
	tables := make([]tableJSON, 0, len(names))
	for _, name := range names {
		fields, err := s.catalog.Fields(name)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		tables = append(tables, newTableJSON(name, fields))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version": version,
		"tables":  tables,
	})
}

func (s *Server) handleListTables(w http.ResponseWriter, _ *http.Request) {
	names := s.catalog.Tables()
	writeJSON(w, http.StatusOK, map[string]any{
		"tables": names,
		"count":  len(names),
	})
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	fields, err := s.catalog.Fields(name)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTableJSON(name, fields))
}

func (s *Server) handleCountTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	n, err := s.catalog.CountTable(r.Context(), name)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table": name,
		"count": n,
	})
}

// handleTableRows lists rows of a table, optionally filtered by
// ?where=<field>&equals=<value>. The value is bound as text and compared
// under the column's affinity.
func (s *Server) handleTableRows(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	q := r.URL.Query()
	where := q.Get("where")

	var equals any
	if where != "" {
		if !q.Has("equals") {
			writeBadRequest(w, "equals is required with where")
			return
		}
		equals = q.Get("equals")
	}

	rows, err := s.catalog.RowsOf(r.Context(), name, where, equals)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table": name,
		"rows":  rows,
		"count": len(rows),
	})
}
