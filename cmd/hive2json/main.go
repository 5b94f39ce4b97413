// Command hive2json converts a compressed hive archive to a JSON document.
//
//	hive2json <archive>.hive <output>.json
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/container"
)

const usage = "usage: hive2json <archive>.hive <output>.json"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run converts args[0] to args[1] and returns the process exit code.
func run(args []string, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, usage)
		return 1
	}
	if err := convert(args[0], args[1]); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// convert dumps the archive at src as JSON to dst. The archive is reopened
// read-only, so closing it rewrites an identical .hive file.
func convert(src, dst string) error {
	filename := strings.TrimSuffix(src, filepath.Ext(src))

	a, err := archive.Open(filename, archive.Options{Mode: container.ModeRead})
	if err != nil {
		return err
	}
	dumpErr := a.DumpJSON("", dst)
	if err := a.Close(); err != nil && dumpErr == nil {
		return err
	}
	return dumpErr
}
