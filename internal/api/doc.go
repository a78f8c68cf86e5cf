// Package api provides the admin HTTP API and WebSocket change stream for
// managedmodel.
//
// It exposes database health, the schema version, the registered entity
// tables and their rows, and streams entity change events to WebSocket
// clients.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
//
// # Routes
//
//	GET /api/v1/health                 database reachability, schema version, executor counters
//	GET /api/v1/schema                 schema version and every registered table with its fields
//	GET /api/v1/tables                 registered table names
//	GET /api/v1/tables/{table}         one table's fields
//	GET /api/v1/tables/{table}/count   row count
//	GET /api/v1/tables/{table}/rows    rows, optionally ?where=<field>&equals=<value>
//	GET /api/v1/changes                recorded changes, ?table=&action=&key=&limit=&offset=
//	GET /api/v1/ws                     WebSocket change stream
//
// # WebSocket
//
// Clients send {"type":"subscribe","payload":{"channels":["entity.Person"]}}
// to receive change events for one table, or subscribe to "entity.*" for all
// of them. Each event carries a model.ChangeEvent as its payload.
//
// The API is read-only. Mutations go through the controller, which publishes
// to the Hub.
package api
