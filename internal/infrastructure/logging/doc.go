// Package logging configures the service's log/slog output.
//
// Records are JSON by default or text for local work, and always carry
// service and version attributes:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "./data/managedmodel.log"
//
// Components take a child logger:
//
//	log, err := logging.New(cfg.Logging, version)
//	if err != nil {
//	    return err
//	}
//	defer log.Close()
//	db.SetLogger(log.With("component", "database"))
//
// The database logs statement kinds and tables, never bound arguments.
package logging
