package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/hive/internal/config"
	"github.com/hpungsan/hive/internal/errors"
)

// PathCheckMode selects the checks ValidatePath applies.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // import: the file must exist
	PathCheckWrite                      // export: the file may be created
)

// Document file formats accepted by import and export.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ExportsDirName is the directory under ~/.hive that is always allowed.
const ExportsDirName = "exports"

var formatByExt = map[string]string{
	".json": FormatJSON,
	".yaml": FormatYAML,
	".yml":  FormatYAML,
}

// FormatForPath returns the document format implied by the path's extension.
func FormatForPath(path string) (string, error) {
	if format, ok := formatByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return format, nil
	}
	return "", errors.NewInvalidRequest("path must have .json, .yaml or .yml extension")
}

// ValidatePath checks an import or export file path. The path must carry a
// document extension and no ".." component, and neither it nor its parent
// may be a symlink. Unless cfg.AllowUnsafePaths is set, the file must sit
// directly in ~/.hive/exports or one of cfg.AllowedPaths; subdirectories
// are refused because O_NOFOLLOW only guards the final component.
func ValidatePath(path string, mode PathCheckMode, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}
	if _, err := FormatForPath(path); err != nil {
		return err
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		dirs, err := allowedDirs(cfg)
		if err != nil {
			return err
		}
		parent := filepath.Dir(abs)
		if !inAllowedDir(parent, dirs) {
			return errors.NewInvalidRequest(fmt.Sprintf(
				"file must be directly in an allowed directory (no subdirectories); allowed: %v", dirs))
		}
		if isSymlink(parent) {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			return errors.NewNotFound(path)
		}
	}
	if isSymlink(abs) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// isSymlink reports whether p exists and is itself a symlink.
func isSymlink(p string) bool {
	info, err := os.Lstat(p)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// allowedDirs returns the exports dir plus the absolute allowed_paths
// entries, with symlinked entries resolved to their targets.
func allowedDirs(cfg *config.Config) ([]string, error) {
	exports, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	candidates := []string{exports}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				candidates = append(candidates, p)
			}
		}
	}

	dirs := make([]string, 0, len(candidates))
	for _, d := range candidates {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if isSymlink(abs) {
			if abs, err = filepath.EvalSymlinks(abs); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
		}
		dirs = append(dirs, abs)
	}
	return dirs, nil
}

func inAllowedDir(parent string, dirs []string) bool {
	parent = filepath.Clean(parent)
	for _, d := range dirs {
		if parent == d {
			return true
		}
	}
	return false
}

// DefaultExportsDir returns ~/.hive/exports.
func DefaultExportsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(home, config.DirName, ExportsDirName), nil
}

// containsTraversal reports whether any component of path is "..", splitting
// on both the OS separator and "/".
func containsTraversal(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	for _, part := range parts {
		if part == ".." {
			return true
		}
	}
	return false
}

// SanitizeForFilename turns an archive name into a safe filename stem:
// separators and ".." become dashes, control characters are dropped and
// runs of dashes collapse.
func SanitizeForFilename(s string) string {
	s = strings.NewReplacer("/", "-", "\\", "-").Replace(s)
	s = strings.ReplaceAll(s, "..", "-")
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	if s = strings.Trim(s, "-"); s == "" {
		return "unnamed"
	}
	return s
}
