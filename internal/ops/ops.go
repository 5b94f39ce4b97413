// Package ops implements the archive operations shared by the CLI, the MCP
// server and the web UI. Each operation takes an Input struct and returns an
// Output struct or a coded error.
package ops

import (
	"log/slog"
	"strings"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/config"
	"github.com/hpungsan/hive/internal/container"
	"github.com/hpungsan/hive/internal/errors"
	"github.com/hpungsan/hive/internal/template"
)

// Limits
const (
	DefaultAddCells = 1
	MaxAddCells     = 1000
)

// OpenArchive opens filename with the template, ref code and compression
// level from cfg. An empty filename falls back to cfg.Archive.
func OpenArchive(cfg *config.Config, filename string, mode container.Mode, log *slog.Logger) (*archive.Archive, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if strings.TrimSpace(filename) == "" {
		filename = cfg.Archive
	}

	var tmpl *template.Template
	if cfg.Template != "" {
		var err error
		tmpl, err = template.ParseFile(cfg.Template)
		if err != nil {
			return nil, err
		}
	}

	return archive.Open(filename, archive.Options{
		Mode:             mode,
		Template:         tmpl,
		RefCode:          cfg.RefCode,
		CompressionLevel: cfg.CompressionLevel,
		Logger:           log,
	})
}

// NormalizePath validates a node path and returns it in clean absolute form.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	if strings.ContainsRune(p, 0) {
		return "", errors.NewInvalidRequest("path must not contain NUL bytes")
	}
	return container.Clean(p), nil
}

// normalizeBase is NormalizePath where empty means the root.
func normalizeBase(base string) string {
	return container.Clean(strings.TrimSpace(base))
}
