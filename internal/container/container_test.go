package container

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hive/internal/errors"
)

// openTemp creates a fresh container in a temp directory.
func openTemp(t *testing.T) *Container {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "test.hdf5"), ModeAppend)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpen_CreatesFileAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.hdf5")

	c, err := Open(path, "")
	require.NoError(t, err)
	defer c.Close()

	_, err = os.Stat(path)
	require.NoError(t, err, "container file not created")

	version, err := GetUserVersion(c.db)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, version)

	kind, err := c.Kind("/")
	require.NoError(t, err)
	require.Equal(t, KindGroup, kind, "root group must exist after migration")
}

func TestOpen_JournalMode(t *testing.T) {
	c := openTemp(t)

	var journalMode string
	require.NoError(t, c.db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode))
	require.Equal(t, "delete", journalMode)
}

func TestOpen_MigrationIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.hdf5")

	c1, err := Open(path, ModeAppend)
	require.NoError(t, err)
	require.NoError(t, c1.CreateGroup("/a"))
	require.NoError(t, c1.Close())

	c2, err := Open(path, ModeAppend)
	require.NoError(t, err)
	defer c2.Close()

	kind, err := c2.Kind("/a")
	require.NoError(t, err)
	require.Equal(t, KindGroup, kind)
}

func TestOpen_Modes(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.hdf5")

	_, err := Open(missing, ModeRead)
	require.True(t, errors.Is(err, errors.ErrNotFound), "r on missing file: %v", err)

	_, err = Open(missing, ModeReadWrite)
	require.True(t, errors.Is(err, errors.ErrNotFound), "r+ on missing file: %v", err)

	existing := filepath.Join(dir, "existing.hdf5")
	c, err := Open(existing, ModeExclusive)
	require.NoError(t, err)
	require.NoError(t, c.CreateGroup("/keep"))
	require.NoError(t, c.Close())

	_, err = Open(existing, "w-")
	require.True(t, errors.Is(err, errors.ErrAlreadyExists), "w- on existing file: %v", err)

	c, err = Open(existing, ModeTruncate)
	require.NoError(t, err)
	has, err := c.Has("/keep")
	require.NoError(t, err)
	require.False(t, has, "w must truncate")
	require.NoError(t, c.Close())

	_, err = Open(existing, "rw")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestOpen_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.hdf5")
	c, err := Open(path, ModeAppend)
	require.NoError(t, err)
	require.NoError(t, c.CreateSlot("/name", DTypeString))
	require.NoError(t, c.Write("/name", "Alice"))
	require.NoError(t, c.Close())

	ro, err := Open(path, ModeRead)
	require.NoError(t, err)
	defer ro.Close()
	require.True(t, ro.ReadOnly())

	v, err := ro.Read("/name")
	require.NoError(t, err)
	require.Equal(t, "Alice", v.String())

	err = ro.Write("/name", "Bob")
	require.True(t, errors.Is(err, errors.ErrReadOnly))
	err = ro.CreateGroup("/g")
	require.True(t, errors.Is(err, errors.ErrReadOnly))
}

func TestOpen_RejectsDriverSyntaxInPath(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a?mode=ro.hdf5", "b#frag.hdf5"} {
		path := filepath.Join(dir, name)
		_, err := Open(path, ModeAppend)
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), "%s: %v", name, err)

		_, statErr := os.Stat(path)
		require.True(t, os.IsNotExist(statErr), "%s must not be created", name)
	}
}

func TestMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.hdf5")
	c, err := Open(path, ModeAppend)
	require.NoError(t, err)

	_, ok, err := c.Meta("template")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.SetMeta("template", "/a/\n"))
	require.NoError(t, c.SetMeta("template", "/b/\n"))
	require.NoError(t, c.Close())

	ro, err := Open(path, ModeRead)
	require.NoError(t, err)
	defer ro.Close()

	v, ok, err := ro.Meta("template")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "/b/\n", v)

	err = ro.SetMeta("template", "x")
	require.True(t, errors.Is(err, errors.ErrReadOnly))
}

func TestMeta_VersionOneContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.hdf5")
	c, err := Open(path, ModeAppend)
	require.NoError(t, err)
	_, err = c.db.Exec("DROP TABLE meta")
	require.NoError(t, err)
	require.NoError(t, SetUserVersion(c.db, 1))
	require.NoError(t, c.Close())

	ro, err := Open(path, ModeRead)
	require.NoError(t, err)
	defer ro.Close()

	_, ok, err := ro.Meta("template")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateGroup_RequiresParent(t *testing.T) {
	c := openTemp(t)

	err := c.CreateGroup("/a/b")
	require.True(t, errors.Is(err, errors.ErrSchema), "missing ancestor: %v", err)

	require.NoError(t, c.CreateGroup("/a"))
	require.NoError(t, c.CreateGroup("/a/b/"))

	err = c.CreateGroup("/a")
	require.True(t, errors.Is(err, errors.ErrAlreadyExists))

	require.NoError(t, c.CreateSlot("/a/leaf", DTypeString))
	err = c.CreateGroup("/a/leaf/child")
	require.True(t, errors.Is(err, errors.ErrSchema), "slot as parent: %v", err)
}

func TestSlot_DefaultsAndLayout(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.CreateSlot("/records", DTypeInt32))
	require.NoError(t, c.CreateSlot("/title", DTypeString))

	v, err := c.Read("/records")
	require.NoError(t, err)
	require.Equal(t, DTypeInt32, v.DType)
	require.Equal(t, "0", v.String())
	require.False(t, v.IsEmpty(), "integer slots are never empty")

	v, err = c.Read("title")
	require.NoError(t, err)
	require.True(t, v.IsEmpty())

	info, err := c.Info("/title")
	require.NoError(t, err)
	require.Equal(t, &Info{Path: "/title", DType: "vlen-string", Shape: 1, Chunks: 1, Compression: "gzip"}, info)
}

func TestWrite_Conversions(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.CreateSlot("/records", DTypeInt32))
	require.NoError(t, c.CreateSlot("/count", DTypeString))

	tests := []struct {
		name    string
		path    string
		value   any
		want    string
		wantErr errors.ErrorCode
	}{
		{name: "int into int32", path: "/records", value: 7, want: "7"},
		{name: "decimal string into int32", path: "/records", value: "42", want: "42"},
		{name: "json number into int32", path: "/records", value: json.Number("3"), want: "3"},
		{name: "integral float into int32", path: "/records", value: float64(9), want: "9"},
		{name: "fraction into int32", path: "/records", value: 1.5, wantErr: errors.ErrSchema},
		{name: "text into int32", path: "/records", value: "many", wantErr: errors.ErrSchema},
		{name: "overflow into int32", path: "/records", value: int64(1) << 40, wantErr: errors.ErrSchema},
		{name: "json number into string", path: "/count", value: json.Number("3"), want: "3"},
		{name: "bool into string", path: "/count", value: true, want: "true"},
		{name: "nil into string", path: "/count", value: nil, want: ""},
		{name: "array rejected", path: "/count", value: []any{"a"}, wantErr: errors.ErrInvalidRequest},
		{name: "missing slot", path: "/nope", value: "x", wantErr: errors.ErrSchema},
		{name: "group is not a slot", path: "/", value: "x", wantErr: errors.ErrSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Write(tt.path, tt.value)
			if tt.wantErr != "" {
				require.True(t, errors.Is(err, tt.wantErr), "got %v, want %s", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			v, err := c.Read(tt.path)
			require.NoError(t, err)
			require.Equal(t, tt.want, v.String())
		})
	}
}

func TestChildren_NameOrder(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.CreateGroup("/zeta"))
	require.NoError(t, c.CreateSlot("/alpha", DTypeString))
	require.NoError(t, c.CreateGroup("/mid"))
	require.NoError(t, c.CreateSlot("/mid/inner", DTypeString))

	nodes, err := c.Children("/")
	require.NoError(t, err)
	require.Equal(t, []Node{
		{Path: "/alpha", Name: "alpha", Kind: KindSlot},
		{Path: "/mid", Name: "mid", Kind: KindGroup},
		{Path: "/zeta", Name: "zeta", Kind: KindGroup},
	}, nodes)

	_, err = c.Children("/alpha")
	require.True(t, errors.Is(err, errors.ErrSchema))
}

func TestDelete_Subtree(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.CreateGroup("/a"))
	require.NoError(t, c.CreateGroup("/a/b"))
	require.NoError(t, c.CreateSlot("/a/b/c", DTypeString))
	require.NoError(t, c.CreateGroup("/a0"))
	require.NoError(t, c.CreateGroup("/ab"))

	require.NoError(t, c.Delete("/a"))

	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		has, err := c.Has(p)
		require.NoError(t, err)
		require.False(t, has, "%s should be deleted", p)
	}
	for _, p := range []string{"/a0", "/ab"} {
		has, err := c.Has(p)
		require.NoError(t, err)
		require.True(t, has, "%s is a sibling and must survive", p)
	}

	err := c.Delete("/a")
	require.True(t, errors.Is(err, errors.ErrSchema))
	err = c.Delete("/")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestClean(t *testing.T) {
	tests := map[string]string{
		"":             "/",
		"/":            "/",
		"records":      "/records",
		"/ref/":        "/ref",
		"//a//b/":      "/a/b",
		"/0000000001/": "/0000000001",
	}
	for in, want := range tests {
		require.Equal(t, want, Clean(in), "Clean(%q)", in)
	}
}
