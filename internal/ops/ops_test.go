package ops

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/config"
	"github.com/hpungsan/hive/internal/container"
	"github.com/hpungsan/hive/internal/document"
	"github.com/hpungsan/hive/internal/errors"
	"github.com/hpungsan/hive/internal/template"
)

const testTemplate = `@version T1
/hiveversion
/records
/survey
/ref/
/ref/name
/ref/age
/ref/address/
/ref/address/city
`

// newTestArchive returns an initialized archive built from testTemplate.
func newTestArchive(t *testing.T) *archive.Archive {
	t.Helper()
	tmpl, err := template.Parse("test.template", strings.NewReader(testTemplate))
	require.NoError(t, err)

	a, err := archive.Open(filepath.Join(t.TempDir(), "ops.hdf5"), archive.Options{Template: tmpl})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	_, err = Init(a, InitInput{})
	require.NoError(t, err)
	return a
}

func TestOpenArchive_UsesConfig(t *testing.T) {
	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "custom.template")
	require.NoError(t, os.WriteFile(tmplPath, []byte("/hiveversion\n/records\n/cell/\n/cell/x\n"), 0600))

	cfg := config.DefaultConfig()
	cfg.Template = tmplPath
	cfg.RefCode = "/cell"
	cfg.Archive = filepath.Join(dir, "from-config.hdf5")

	a, err := OpenArchive(cfg, "", container.ModeAppend, nil)
	require.NoError(t, err)
	require.Equal(t, cfg.Archive, a.Filename)
	require.Equal(t, "/cell", a.RefCode)
	require.Equal(t, "custom.template", filepath.Base(a.Template().Name))

	_, err = Init(a, InitInput{})
	require.NoError(t, err)
	out, err := AddCell(a, AddCellInput{})
	require.NoError(t, err)
	require.Equal(t, []string{"/0000000001"}, out.Labels)

	has, err := a.Has("/0000000001/x")
	require.NoError(t, err)
	require.True(t, has)
	require.NoError(t, a.Close())

	_, err = os.Stat(cfg.Archive + archive.Ext)
	require.NoError(t, err)
}

func TestOpenArchive_MissingTemplate(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Template = filepath.Join(t.TempDir(), "nope.template")

	_, err := OpenArchive(cfg, filepath.Join(t.TempDir(), "a.hdf5"), "", nil)
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestNormalizePath(t *testing.T) {
	p, err := NormalizePath(" ref//name/ ")
	require.NoError(t, err)
	require.Equal(t, "/ref/name", p)

	_, err = NormalizePath("  ")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestInit(t *testing.T) {
	tmpl, err := template.Parse("test.template", strings.NewReader(testTemplate))
	require.NoError(t, err)
	a, err := archive.Open(filepath.Join(t.TempDir(), "init.hdf5"), archive.Options{Template: tmpl})
	require.NoError(t, err)
	defer a.Close()

	out, err := Init(a, InitInput{})
	require.NoError(t, err)
	require.Equal(t, "T1", out.Version)
	require.Equal(t, "test.template", out.Template)
	// hiveversion, records, survey, ref/name, ref/age, ref/address/city
	require.Equal(t, 6, out.Slots)
}

func TestAddCellAndCells(t *testing.T) {
	a := newTestArchive(t)

	values, err := document.Parse([]byte(`{"name": "Ana", "address": {"city": "Lima"}}`))
	require.NoError(t, err)

	out, err := AddCell(a, AddCellInput{Count: 3, Values: values})
	require.NoError(t, err)
	require.Equal(t, []string{"/0000000001", "/0000000002", "/0000000003"}, out.Labels)
	require.Equal(t, 3, out.Records)

	cells, err := Cells(a, CellsInput{IncludeValues: true})
	require.NoError(t, err)
	require.Equal(t, 3, cells.Records)
	require.Equal(t, "0000000002", cells.Cells[1].Label)

	data, err := json.Marshal(cells.Cells[2].Values)
	require.NoError(t, err)
	require.Equal(t, `{"address":{"city":"Lima"},"age":"","name":"Ana"}`, string(data))

	bare, err := Cells(a, CellsInput{})
	require.NoError(t, err)
	require.Nil(t, bare.Cells[0].Values)
}

func TestAddCell_CountBounds(t *testing.T) {
	a := newTestArchive(t)
	for _, n := range []int{-1, MaxAddCells + 1} {
		_, err := AddCell(a, AddCellInput{Count: n})
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), "count %d", n)
	}
}

func TestAddCell_ValuesOutsideSchema(t *testing.T) {
	a := newTestArchive(t)
	values, err := document.Parse([]byte(`{"nickname": "x"}`))
	require.NoError(t, err)

	_, err = AddCell(a, AddCellInput{Values: values})
	require.True(t, errors.Is(err, errors.ErrSchema))
}

func TestCells_Integrity(t *testing.T) {
	a := newTestArchive(t)
	_, err := AddCell(a, AddCellInput{Count: 2})
	require.NoError(t, err)
	require.NoError(t, a.Container().Delete("/0000000001"))

	_, err = Cells(a, CellsInput{})
	require.True(t, errors.Is(err, errors.ErrIntegrity))
}

func TestGetAndSet(t *testing.T) {
	a := newTestArchive(t)
	_, err := AddCell(a, AddCellInput{})
	require.NoError(t, err)

	setOut, err := Set(a, SetInput{Path: "0000000001/age", Value: "42"})
	require.NoError(t, err)
	require.Equal(t, "/0000000001/age", setOut.Path)
	require.Equal(t, "42", setOut.Value)

	got, err := Get(a, GetInput{Path: "/0000000001/age"})
	require.NoError(t, err)
	require.Equal(t, "slot", got.Kind)
	require.Equal(t, "42", *got.Value)
	require.Equal(t, 2, got.Length)
	require.False(t, got.Empty)
	require.Equal(t, "vlen-string", got.Layout.DType)
	require.Equal(t, "gzip", got.Layout.Compression)

	got, err = Get(a, GetInput{Path: "/records"})
	require.NoError(t, err)
	require.Equal(t, "1", *got.Value)
	require.Equal(t, "int32", got.Layout.DType)

	group, err := Get(a, GetInput{Path: "/0000000001"})
	require.NoError(t, err)
	require.Equal(t, "group", group.Kind)
	require.Equal(t, []string{"address", "age", "name"}, group.Children)
	require.Nil(t, group.Value)

	empty, err := Get(a, GetInput{Path: "/survey"})
	require.NoError(t, err)
	require.True(t, empty.Empty)
	require.Equal(t, "", *empty.Value)
}

func TestSet_Errors(t *testing.T) {
	a := newTestArchive(t)

	_, err := Set(a, SetInput{Path: "/records", Value: 7})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Set(a, SetInput{Path: "/missing", Value: "x"})
	require.True(t, errors.Is(err, errors.ErrSchema))

	_, err = Set(a, SetInput{Path: "", Value: "x"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Get(a, GetInput{Path: "/nowhere"})
	require.True(t, errors.Is(err, errors.ErrSchema))
}

func TestDocument_Variants(t *testing.T) {
	a := newTestArchive(t)
	_, err := Set(a, SetInput{Path: "/survey", Value: "2024"})
	require.NoError(t, err)

	out, err := Document(a, DocumentInput{})
	require.NoError(t, err)
	require.Equal(t, "/", out.Base)
	data, err := json.Marshal(out.Document)
	require.NoError(t, err)
	require.Equal(t, `{"hiveversion":"T1","records":"0","ref":{"address":{"city":""},"age":"","name":""},"survey":"2024"}`, string(data))

	out, err = Document(a, DocumentInput{Base: "ref", Flat: true, Envelope: true})
	require.NoError(t, err)
	require.Equal(t, "/ref", out.Base)
	data, err = json.Marshal(out.Document)
	require.NoError(t, err)
	require.Equal(t, `{"ARChive":{"/address/city":"","/age":"","/name":""}}`, string(data))
}

func TestLoad_FlatAndEnvelope(t *testing.T) {
	a := newTestArchive(t)
	_, err := AddCell(a, AddCellInput{Count: 2})
	require.NoError(t, err)

	flat, err := document.Parse([]byte(`{"ARChive": {"/name": "Bo", "/address/city": "Oslo"}}`))
	require.NoError(t, err)
	out, err := Load(a, LoadInput{Document: flat, Base: "/0000000002", Flat: true, Envelope: true})
	require.NoError(t, err)
	require.Equal(t, 2, out.Written)

	v, err := a.Get("/0000000002/address/city")
	require.NoError(t, err)
	require.Equal(t, "Oslo", v.String())

	_, err = Load(a, LoadInput{Document: flat})
	require.True(t, errors.Is(err, errors.ErrSchema), "unwrapped envelope key is not a slot")

	bad, err := document.Parse([]byte(`{"other": {}}`))
	require.NoError(t, err)
	_, err = Load(a, LoadInput{Document: bad, Envelope: true})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestQuery(t *testing.T) {
	a := newTestArchive(t)
	_, err := AddCell(a, AddCellInput{Count: 2})
	require.NoError(t, err)
	_, err = Set(a, SetInput{Path: "/0000000001/name", Value: "Ana"})
	require.NoError(t, err)
	_, err = Set(a, SetInput{Path: "/0000000002/name", Value: "Bo"})
	require.NoError(t, err)

	out, err := Query(a, QueryInput{Expr: "$['0000000002'].name"})
	require.NoError(t, err)
	require.Equal(t, []any{"Bo"}, out.Results)

	out, err = Query(a, QueryInput{Expr: "$..city", Base: "/0000000001"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	require.Equal(t, "/0000000001", out.Base)

	out, err = Query(a, QueryInput{Expr: "$.nothing"})
	require.NoError(t, err)
	require.Empty(t, out.Results)
	require.NotNil(t, out.Results)

	_, err = Query(a, QueryInput{Expr: "$[?(@.x =="})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Query(a, QueryInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestTree_Formats(t *testing.T) {
	a := newTestArchive(t)

	out, err := Tree(a, TreeInput{Base: "/ref"})
	require.NoError(t, err)
	require.Equal(t, "G: /ref/address [1]\n\tD: city : 0 : []\nD: age : 0 : []\nD: name : 0 : []\n", out.Text)

	out, err = Tree(a, TreeInput{Base: "/ref", Format: "paths"})
	require.NoError(t, err)
	require.Equal(t, []string{"/ref/address/city", "/ref/age", "/ref/name"}, out.Paths)

	out, err = Tree(a, TreeInput{Format: "groups"})
	require.NoError(t, err)
	require.Equal(t, "<ul><li>/ref (G)</li><li>/ref/address (G)</li></ul>", out.Text)

	out, err = Tree(a, TreeInput{Base: "/ref/address", Format: "HTML"})
	require.NoError(t, err)
	require.Equal(t, "<ul><li>/ref/address/city (D)</li></ul>", out.Text)

	out, err = Tree(a, TreeInput{Base: "/ref/address", Format: "markdown"})
	require.NoError(t, err)
	require.Equal(t, "- city: _empty_\n", out.Text)

	_, err = Tree(a, TreeInput{Format: "svg"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
