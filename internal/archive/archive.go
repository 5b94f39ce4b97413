// Package archive implements hive archives: a container file built from a
// template, holding numbered cell records, persisted as a gzip-compressed
// ".hive" file between sessions.
//
// While open, the archive works on a decompressed scratch copy of the
// container. Close recompresses it into the .hive file and removes the
// scratch copy, so the .hive file is the only durable artifact.
package archive

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/hive/internal/container"
	"github.com/hpungsan/hive/internal/errors"
	"github.com/hpungsan/hive/internal/template"
)

// Ext is appended to the working filename to name the compressed archive.
const Ext = ".hive"

// Container metadata keys written by Initialize.
const (
	metaTemplate     = "template"
	metaTemplateName = "template_name"
	metaRefCode      = "ref_code"
)

// Options control how an archive is opened.
type Options struct {
	// Mode is the container open mode. Empty means open-or-create.
	Mode container.Mode

	// Template is replayed by Initialize and AddCell. Nil means the bundled
	// default. An initialized archive uses the template it was built from.
	Template *template.Template

	// RefCode is the template rebasing marker. Empty means "/ref".
	RefCode string

	// CompressionLevel is the gzip level used on close. 0 means gzip.DefaultCompression.
	CompressionLevel int

	// Logger receives debug events. Nil means slog.Default().
	Logger *slog.Logger
}

// Archive is an open hive archive. It owns its container exclusively and is
// not safe for concurrent use.
type Archive struct {
	Filename    string // working container path
	ArchivePath string // durable compressed path
	Version     string
	RefCode     string

	c       *container.Container
	tmpl    *template.Template
	level   int
	log     *slog.Logger
	session ulid.ULID
	closed  bool
}

// Open materialises filename from filename+".hive" when the compressed
// archive exists, then opens the working file as a container.
func Open(filename string, opts Options) (*Archive, error) {
	if filename == "" {
		return nil, errors.NewInvalidRequest("archive filename is required")
	}

	a := &Archive{
		Filename:    filename,
		ArchivePath: filename + Ext,
		Version:     template.DefaultVersion,
		RefCode:     opts.RefCode,
		tmpl:        opts.Template,
		level:       opts.CompressionLevel,
		log:         opts.Logger,
		session:     ulid.Make(),
	}
	if a.RefCode == "" {
		a.RefCode = template.DefaultRefCode
	}
	if a.tmpl == nil {
		a.tmpl = template.Default()
	}
	if a.level == 0 {
		a.level = gzip.DefaultCompression
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	a.log = a.log.With("archive", a.ArchivePath, "session", a.session.String())

	extracted := false
	if _, err := os.Stat(a.ArchivePath); err == nil {
		if err := decompressFile(a.ArchivePath, a.Filename); err != nil {
			return nil, err
		}
		extracted = true
		a.log.Debug("extracted archive", "working", a.Filename)
	} else if !stderrors.Is(err, os.ErrNotExist) {
		return nil, errors.NewInternal(fmt.Errorf("failed to stat archive: %w", err))
	}

	c, err := container.Open(a.Filename, opts.Mode)
	if err != nil {
		if extracted {
			os.Remove(a.Filename)
		}
		return nil, err
	}
	a.c = c
	if err := a.loadStored(); err != nil {
		c.Close()
		if extracted {
			os.Remove(a.Filename)
		}
		return nil, err
	}
	a.log.Debug("opened container", "mode", string(opts.Mode), "template", a.tmpl.Name, "version", a.Version)
	return a, nil
}

// loadStored picks up the template, ref code and version recorded by a
// previous Initialize. Stored values override the open options so every
// cell follows the template the archive was built from.
func (a *Archive) loadStored() error {
	src, ok, err := a.c.Meta(metaTemplate)
	if err != nil {
		return err
	}
	if ok {
		name, _, err := a.c.Meta(metaTemplateName)
		if err != nil {
			return err
		}
		tmpl, err := template.Parse(name, strings.NewReader(src))
		if err != nil {
			return err
		}
		a.tmpl = tmpl
	}

	refCode, ok, err := a.c.Meta(metaRefCode)
	if err != nil {
		return err
	}
	if ok && refCode != "" {
		a.RefCode = refCode
	}

	kind, err := a.c.Kind(VersionPath)
	if err != nil {
		return err
	}
	if kind == container.KindSlot {
		v, err := a.c.Read(VersionPath)
		if err != nil {
			return err
		}
		if v.Str != "" {
			a.Version = v.Str
		}
	}
	return nil
}

// Close closes the container, compresses the working file into the .hive
// archive and removes the working file. Close is not idempotent.
func (a *Archive) Close() error {
	if a.closed {
		return errors.NewClosed(a.ArchivePath)
	}
	a.closed = true

	if err := a.c.Close(); err != nil {
		return err
	}

	// Compress to a sibling first so a failed write never truncates the
	// previous archive.
	tempPath := a.ArchivePath + "." + a.session.String() + ".tmp"
	if err := compressFile(a.Filename, tempPath, a.level); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := os.Rename(tempPath, a.ArchivePath); err != nil {
		os.Remove(tempPath)
		return errors.NewInternal(fmt.Errorf("failed to finalize archive: %w", err))
	}
	if err := os.Remove(a.Filename); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to remove working file: %w", err))
	}

	a.log.Debug("closed archive")
	return nil
}

// Container exposes the underlying container.
func (a *Archive) Container() *container.Container {
	return a.c
}

// Template returns the template Initialize and AddCell replay by default.
func (a *Archive) Template() *template.Template {
	return a.tmpl
}

// checkOpen guards operations after Close.
func (a *Archive) checkOpen() error {
	if a.closed {
		return errors.NewClosed(a.ArchivePath)
	}
	return nil
}

// decompressFile gunzips src into dst, replacing dst.
func decompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to open archive: %w", err))
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to read archive %s: %w", src, err))
	}
	defer zr.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create working file: %w", err))
	}
	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		return errors.NewInternal(fmt.Errorf("failed to extract archive %s: %w", src, err))
	}
	if err := out.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close working file: %w", err))
	}
	return nil
}

// compressFile gzips src into dst at the given level.
func compressFile(src, dst string, level int) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to open working file: %w", err))
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create archive: %w", err))
	}
	defer out.Close()

	zw, err := gzip.NewWriterLevel(out, level)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid compression level %d", level))
	}
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		return errors.NewInternal(fmt.Errorf("failed to compress archive: %w", err))
	}
	if err := zw.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to compress archive: %w", err))
	}
	if err := out.Sync(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to sync archive: %w", err))
	}
	return nil
}
