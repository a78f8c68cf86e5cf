package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// provision copies the configured template to cfg.Path when no database
// file exists there. Without a template SQLite creates an empty file on
// first open.
func provision(cfg Config) error {
	if cfg.Template == nil {
		return nil
	}

	if _, err := os.Stat(cfg.Path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &ProvisioningError{Path: cfg.Path, Template: cfg.TemplateName, Err: err}
	}

	if err := copyTemplate(cfg.Template, cfg.TemplateName, cfg.Path); err != nil {
		return &ProvisioningError{Path: cfg.Path, Template: cfg.TemplateName, Err: err}
	}
	return nil
}

// copyTemplate writes the template byte for byte. A partial copy is removed
// so the next start tries again.
func copyTemplate(fsys fs.FS, name, path string) (err error) {
	src, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("opening template: %w", err)
	}
	defer src.Close() //nolint:errcheck // Read-only handle

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermissions)
	if err != nil {
		return fmt.Errorf("creating database file: %w", err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing database file: %w", cerr)
		}
		if err != nil {
			os.Remove(path) //nolint:errcheck // Best effort cleanup of a partial copy
		}
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying template: %w", err)
	}
	return dst.Sync()
}
