package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hive/internal/document"
	"github.com/hpungsan/hive/internal/errors"
)

func writeImportFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0600))
	return p
}

func TestImport_JSON(t *testing.T) {
	a := newTestArchive(t)
	_, err := AddCell(a, AddCellInput{Count: 2})
	require.NoError(t, err)

	dir := t.TempDir()
	p := writeImportFile(t, dir, "in.json", `{
		"survey": "wave-2",
		"0000000002": {"name": "Bo", "age": 31, "address": {"city": "Oslo"}}
	}`)

	out, err := Import(a, exportConfig(dir), ImportInput{Path: p})
	require.NoError(t, err)
	require.Equal(t, FormatJSON, out.Format)
	require.Equal(t, 4, out.Written)

	v, err := a.Get("/0000000002/age")
	require.NoError(t, err)
	require.Equal(t, "31", v.String())
	v, err = a.Get("/survey")
	require.NoError(t, err)
	require.Equal(t, "wave-2", v.String())
}

func TestImport_YAMLIntoBase(t *testing.T) {
	a := newTestArchive(t)
	_, err := AddCell(a, AddCellInput{})
	require.NoError(t, err)

	dir := t.TempDir()
	p := writeImportFile(t, dir, "cell.yaml", "name: Ana\naddress:\n  city: Lima\n")

	out, err := Import(a, exportConfig(dir), ImportInput{Path: p, Base: "0000000001"})
	require.NoError(t, err)
	require.Equal(t, FormatYAML, out.Format)
	require.Equal(t, 2, out.Written)

	v, err := a.Get("/0000000001/address/city")
	require.NoError(t, err)
	require.Equal(t, "Lima", v.String())
}

func TestImport_FlatEnvelopeRoundTrip(t *testing.T) {
	a := newTestArchive(t)
	_, err := AddCell(a, AddCellInput{})
	require.NoError(t, err)
	_, err = Set(a, SetInput{Path: "/0000000001/name", Value: "Ana"})
	require.NoError(t, err)

	dir := t.TempDir()
	cfg := exportConfig(dir)
	exportPath := filepath.Join(dir, "flat.json")
	_, err = Export(a, cfg, ExportInput{Path: exportPath, Flat: true, Envelope: true})
	require.NoError(t, err)

	before, err := a.ToDocument("")
	require.NoError(t, err)

	_, err = Set(a, SetInput{Path: "/0000000001/name", Value: "changed"})
	require.NoError(t, err)

	_, err = Import(a, cfg, ImportInput{Path: exportPath, Flat: true, Envelope: true})
	require.NoError(t, err)

	after, err := a.ToDocument("")
	require.NoError(t, err)
	require.True(t, document.Equal(before, after))
}

func TestImport_MissingSlot(t *testing.T) {
	a := newTestArchive(t)
	dir := t.TempDir()
	p := writeImportFile(t, dir, "in.json", `{"0000000009": {"name": "nobody"}}`)

	_, err := Import(a, exportConfig(dir), ImportInput{Path: p})
	require.True(t, errors.Is(err, errors.ErrSchema))
}

func TestImport_Errors(t *testing.T) {
	a := newTestArchive(t)
	dir := t.TempDir()
	cfg := exportConfig(dir)

	_, err := Import(a, cfg, ImportInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Import(a, cfg, ImportInput{Path: filepath.Join(dir, "missing.json")})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	p := writeImportFile(t, dir, "bad.json", `{"survey": `)
	_, err = Import(a, cfg, ImportInput{Path: p})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	p = writeImportFile(t, dir, "list.yaml", "- a\n- b\n")
	_, err = Import(a, cfg, ImportInput{Path: p})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	p = writeImportFile(t, dir, "data.txt", "{}")
	_, err = Import(a, cfg, ImportInput{Path: p})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
