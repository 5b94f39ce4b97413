package ops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/config"
	"github.com/hpungsan/hive/internal/document"
	"github.com/hpungsan/hive/internal/errors"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path     string // optional, default: ~/.hive/exports/<archive>-<timestamp>.json
	Format   string // optional, default: from the path extension, else json
	Base     string // optional, default: root
	Flat     bool
	Envelope bool
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Leaves     int    `json:"leaves"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes the document under Base to a JSON or YAML file. The file is
// written to a temp sibling and renamed into place, so an existing export is
// never left truncated.
func Export(a *archive.Archive, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format != "" && format != FormatJSON && format != FormatYAML {
		return nil, errors.NewInvalidRequest("format must be one of: json, yaml")
	}

	exportPath := input.Path
	if exportPath == "" {
		if format == "" {
			format = FormatJSON
		}
		var err error
		exportPath, err = defaultExportPath(a.ArchivePath, format, now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths are validated too: the archive name is part of them.
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}
	pathFormat, _ := FormatForPath(exportPath)
	if format == "" {
		format = pathFormat
	} else if format != pathFormat {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("format %s does not match path extension", format))
	}

	out, err := Document(a, DocumentInput{Base: input.Base, Flat: input.Flat, Envelope: input.Envelope})
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	tempPath := exportPath + "." + ulid.Make().String() + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := writeDocument(file, out.Document, format); err != nil {
		return nil, err
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}

	// On Windows os.Rename fails when the destination exists. Fail rather than
	// delete-then-rename, which could lose the existing file.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Format:     format,
		Leaves:     document.Flatten(out.Document).Len(),
		ExportedAt: now.Unix(),
	}, nil
}

func writeDocument(w io.Writer, d *document.Document, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return errors.NewInternal(fmt.Errorf("failed to encode YAML: %w", err))
		}
		if err := enc.Close(); err != nil {
			return errors.NewInternal(err)
		}
	default:
		data, err := d.JSON("  ")
		if err != nil {
			return errors.NewInternal(fmt.Errorf("failed to encode JSON: %w", err))
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

// defaultExportPath returns ~/.hive/exports/<archive>-<timestamp>.<format>.
func defaultExportPath(archivePath, format string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}

	name := filepath.Base(archivePath)
	name = strings.TrimSuffix(name, archive.Ext)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = SanitizeForFilename(name)

	filename := fmt.Sprintf("%s-%s.%s", name, now.Format("2006-01-02T150405"), format)
	return filepath.Join(dir, filename), nil
}
