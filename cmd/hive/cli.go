package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/config"
	"github.com/hpungsan/hive/internal/container"
	"github.com/hpungsan/hive/internal/document"
	"github.com/hpungsan/hive/internal/errors"
	"github.com/hpungsan/hive/internal/mcp"
	"github.com/hpungsan/hive/internal/ops"
	"github.com/hpungsan/hive/internal/web"
)

// MaxStdinBytes bounds documents and values piped to the CLI.
const MaxStdinBytes = 16 << 20

// env is shared by all commands. log is replaced in Before once the
// --log-level flag has been parsed.
type env struct {
	cfg *config.Config
	log *slog.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config) *cli.App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e := &env{cfg: cfg, log: slog.Default()}

	app := &cli.App{
		Name:    "hive",
		Usage:   "Hierarchical record archive",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "archive", Aliases: []string{"a"}, Usage: "Archive file, without the .hive extension (default from config)"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug|info|warn|error (default from config)"},
		},
		Before: func(c *cli.Context) error {
			level := c.String("log-level")
			if level == "" {
				level = cfg.LogLevel
			}
			l, err := parseLevel(level)
			if err != nil {
				return outputError(err)
			}
			e.log = newLogger(c.App.ErrWriter, l)
			return nil
		},
		Commands: []*cli.Command{
			initCmd(e),
			addCellCmd(e),
			cellsCmd(e),
			getCmd(e),
			setCmd(e),
			dumpCmd(e),
			exportCmd(e),
			importCmd(e),
			treeCmd(e),
			queryCmd(e),
			uiCmd(e),
			mcpCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// withArchive opens the archive named by --archive (or the config) in mode,
// runs fn and closes the archive. Only init creates archives; every other
// command opens with ModeRead or ModeReadWrite so a missing archive fails
// with NOT_FOUND before anything is written. Close always runs; its error is reported
// only when fn succeeded.
func (e *env) withArchive(c *cli.Context, mode container.Mode, fn func(a *archive.Archive) error) error {
	a, err := ops.OpenArchive(e.cfg, c.String("archive"), mode, e.log)
	if err != nil {
		return outputError(err)
	}

	runErr := fn(a)
	closeErr := a.Close()
	if runErr != nil {
		if closeErr != nil {
			e.log.Error("close failed", "archive", a.ArchivePath, "err", closeErr)
		}
		return outputError(runErr)
	}
	if closeErr != nil {
		return outputError(closeErr)
	}
	return nil
}

// initCmd creates the init command.
func initCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a new archive from the template",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Usage: "Template file (default from config, else the bundled template)"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Replace an existing archive"},
		},
		Action: func(c *cli.Context) error {
			mode := container.ModeExclusive
			if c.Bool("force") {
				mode = container.ModeTruncate
			} else if exists, err := archiveExists(e.cfg, c.String("archive")); err != nil {
				return outputError(err)
			} else if exists {
				return outputError(errors.NewAlreadyExists(archiveName(e.cfg, c.String("archive")) + archive.Ext))
			}

			return e.withArchive(c, mode, func(a *archive.Archive) error {
				output, err := ops.Init(a, ops.InitInput{TemplatePath: c.String("template")})
				if err != nil {
					return err
				}
				return outputJSON(c, output)
			})
		},
	}
}

// addCellCmd creates the add-cell command.
func addCellCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "add-cell",
		Usage: "Append cells (optionally reads a values document from stdin)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: ops.DefaultAddCells, Usage: "Number of cells to add"},
			&cli.StringFlag{Name: "values", Usage: "JSON document loaded into every new cell"},
		},
		Action: func(c *cli.Context) error {
			input := ops.AddCellInput{Count: c.Int("count")}

			raw := c.String("values")
			if raw == "" && stdinHasData(c) {
				text, err := readStdin(c)
				if err != nil {
					return outputError(err)
				}
				raw = text
			}
			if raw != "" {
				d, err := document.Parse([]byte(raw))
				if err != nil {
					return outputError(err)
				}
				input.Values = d
			}

			return e.withArchive(c, container.ModeReadWrite, func(a *archive.Archive) error {
				output, err := ops.AddCell(a, input)
				if err != nil {
					return err
				}
				return outputJSON(c, output)
			})
		},
	}
}

// cellsCmd creates the cells command.
func cellsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "cells",
		Usage: "List the archive's cells",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "values", Usage: "Include each cell's document"},
		},
		Action: func(c *cli.Context) error {
			return e.withArchive(c, container.ModeRead, func(a *archive.Archive) error {
				output, err := ops.Cells(a, ops.CellsInput{IncludeValues: c.Bool("values")})
				if err != nil {
					return err
				}
				return outputJSON(c, output)
			})
		},
	}
}

// getCmd creates the get command.
func getCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read a node",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewUsage("get takes exactly one path"))
			}
			return e.withArchive(c, container.ModeRead, func(a *archive.Archive) error {
				output, err := ops.Get(a, ops.GetInput{Path: c.Args().First()})
				if err != nil {
					return err
				}
				return outputJSON(c, output)
			})
		},
	}
}

// setCmd creates the set command.
func setCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Write a slot (value from the argument or stdin)",
		ArgsUsage: "<path> [value]",
		Action: func(c *cli.Context) error {
			var value string
			switch {
			case c.NArg() == 2:
				value = c.Args().Get(1)
			case c.NArg() == 1 && stdinHasData(c):
				text, err := readStdin(c)
				if err != nil {
					return outputError(err)
				}
				value = text
			default:
				return outputError(errors.NewUsage("set takes a path and a value"))
			}

			return e.withArchive(c, container.ModeReadWrite, func(a *archive.Archive) error {
				output, err := ops.Set(a, ops.SetInput{Path: c.Args().First(), Value: value})
				if err != nil {
					return err
				}
				return outputJSON(c, output)
			})
		},
	}
}

// dumpCmd creates the dump command.
func dumpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "Print the archive as a JSON document",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base", Aliases: []string{"b"}, Usage: "Base group (default /)"},
			&cli.BoolFlag{Name: "flat", Usage: "Use slash-joined paths as keys"},
			&cli.BoolFlag{Name: "envelope", Usage: "Wrap the document under the ARChive key"},
		},
		Action: func(c *cli.Context) error {
			return e.withArchive(c, container.ModeRead, func(a *archive.Archive) error {
				output, err := ops.Document(a, ops.DocumentInput{
					Base:     c.String("base"),
					Flat:     c.Bool("flat"),
					Envelope: c.Bool("envelope"),
				})
				if err != nil {
					return err
				}
				data, err := output.Document.JSON("  ")
				if err != nil {
					return errors.NewInternal(err)
				}
				_, err = fmt.Fprintln(c.App.Writer, string(data))
				return err
			})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the archive to a JSON or YAML file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.hive/exports/<archive>-<timestamp>.json)"},
			&cli.StringFlag{Name: "format", Usage: "json|yaml (default from the extension)"},
			&cli.StringFlag{Name: "base", Aliases: []string{"b"}, Usage: "Base group (default /)"},
			&cli.BoolFlag{Name: "flat", Usage: "Use slash-joined paths as keys"},
			&cli.BoolFlag{Name: "envelope", Usage: "Wrap the document under the ARChive key"},
		},
		Action: func(c *cli.Context) error {
			return e.withArchive(c, container.ModeRead, func(a *archive.Archive) error {
				output, err := ops.Export(a, e.cfg, ops.ExportInput{
					Path:     c.String("path"),
					Format:   c.String("format"),
					Base:     c.String("base"),
					Flat:     c.Bool("flat"),
					Envelope: c.Bool("envelope"),
				})
				if err != nil {
					return err
				}
				return outputJSON(c, output)
			})
		},
	}
}

// importCmd creates the import command.
func importCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Load a JSON or YAML file into existing slots",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "base", Aliases: []string{"b"}, Usage: "Base group (default /)"},
			&cli.BoolFlag{Name: "flat", Usage: "Keys are slash-joined paths"},
			&cli.BoolFlag{Name: "envelope", Usage: "Document is wrapped under the ARChive key"},
		},
		Action: func(c *cli.Context) error {
			return e.withArchive(c, container.ModeReadWrite, func(a *archive.Archive) error {
				output, err := ops.Import(a, e.cfg, ops.ImportInput{
					Path:     c.String("path"),
					Base:     c.String("base"),
					Flat:     c.Bool("flat"),
					Envelope: c.Bool("envelope"),
				})
				if err != nil {
					return err
				}
				return outputJSON(c, output)
			})
		},
	}
}

// treeCmd creates the tree command.
func treeCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "tree",
		Usage: "Print the hierarchy",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base", Aliases: []string{"b"}, Usage: "Base group (default /)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: ops.TreeText, Usage: "text|html|groups|paths|markdown"},
			&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"},
		},
		Action: func(c *cli.Context) error {
			return e.withArchive(c, container.ModeRead, func(a *archive.Archive) error {
				output, err := ops.Tree(a, ops.TreeInput{Base: c.String("base"), Format: c.String("format")})
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return outputJSON(c, output)
				}
				if output.Format == ops.TreePaths {
					_, err = fmt.Fprintln(c.App.Writer, strings.Join(output.Paths, "\n"))
					return err
				}
				_, err = io.WriteString(c.App.Writer, output.Text)
				return err
			})
		},
	}
}

// queryCmd creates the query command.
func queryCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Evaluate a JSONPath expression against the archive",
		ArgsUsage: "<expr>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base", Aliases: []string{"b"}, Usage: "Base group (default /)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewUsage("query takes exactly one expression"))
			}
			return e.withArchive(c, container.ModeRead, func(a *archive.Archive) error {
				output, err := ops.Query(a, ops.QueryInput{Expr: c.Args().First(), Base: c.String("base")})
				if err != nil {
					return err
				}
				return outputJSON(c, output)
			})
		},
	}
}

// uiCmd creates the ui command.
func uiCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Browse the archive in a web browser",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			return e.withArchive(c, container.ModeRead, func(a *archive.Archive) error {
				srv, err := web.NewServer(a, Version, c.String("bind"), c.Int("port"), e.log)
				if err != nil {
					return errors.NewInternal(err)
				}
				if err := web.Run(srv, e.log); err != nil {
					return errors.NewInternal(err)
				}
				return nil
			})
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the archive as MCP tools over stdio",
		Action: func(c *cli.Context) error {
			return e.withArchive(c, container.ModeReadWrite, func(a *archive.Archive) error {
				if err := mcp.Run(a, e.cfg, Version, e.log); err != nil {
					return errors.NewInternal(err)
				}
				return nil
			})
		},
	}
}

// Helper functions

// archiveName resolves the working archive filename.
func archiveName(cfg *config.Config, flag string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	return cfg.Archive
}

// archiveExists reports whether the compressed archive is already on disk.
func archiveExists(cfg *config.Config, flag string) (bool, error) {
	_, err := os.Stat(archiveName(cfg, flag) + archive.Ext)
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.NewInternal(err)
}

// outputJSON marshals result to the app writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var hErr *errors.HiveError
	if stderrors.As(err, &hErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", hErr.Code, hErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData(c *cli.Context) bool {
	f, ok := c.App.Reader.(*os.File)
	if !ok {
		return c.App.Reader != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most MaxStdinBytes from stdin, trimming surrounding
// whitespace.
func readStdin(c *cli.Context) (string, error) {
	data, err := io.ReadAll(io.LimitReader(c.App.Reader, MaxStdinBytes+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if len(data) > MaxStdinBytes {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", MaxStdinBytes))
	}
	return strings.TrimSpace(string(data)), nil
}
