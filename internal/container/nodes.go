package container

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/hpungsan/hive/internal/errors"
)

// Kind is the type of a node in the container tree.
type Kind int

const (
	KindNone Kind = iota
	KindGroup
	KindSlot
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindSlot:
		return "slot"
	}
	return "none"
}

// DType is the element type of a slot.
type DType int

const (
	DTypeInt32 DType = iota + 1
	DTypeString
)

func (d DType) String() string {
	switch d {
	case DTypeInt32:
		return "int32"
	case DTypeString:
		return "vlen-string"
	}
	return "unknown"
}

// Slot layout. Every slot holds exactly one element in one chunk.
const (
	slotShape       = 1
	slotChunks      = 1
	slotCompression = "gzip"
)

// Node is a child entry returned by Children.
type Node struct {
	Path string
	Name string
	Kind Kind
}

// Info describes a slot's storage layout.
type Info struct {
	Path        string `json:"path"`
	DType       string `json:"dtype"`
	Shape       int    `json:"shape"`
	Chunks      int    `json:"chunks"`
	Compression string `json:"compression"`
}

// Value is the single element held by a slot.
type Value struct {
	DType DType
	Int   int32
	Str   string
}

// String renders the value in its natural text form.
func (v Value) String() string {
	if v.DType == DTypeInt32 {
		return strconv.FormatInt(int64(v.Int), 10)
	}
	return v.Str
}

// IsEmpty reports whether a string slot holds zero-length content.
// Integer slots are never empty.
func (v Value) IsEmpty() bool {
	return v.DType == DTypeString && len(v.Str) == 0
}

// Len is the element length: string length in bytes, 1 for integers.
func (v Value) Len() int {
	if v.DType == DTypeInt32 {
		return 1
	}
	return len(v.Str)
}

// Clean normalizes a node path: rooted at "/", cleaned, no trailing slash.
func Clean(p string) string {
	return path.Clean("/" + p)
}

// CreateGroup creates an empty group. The parent must already be a group.
func (c *Container) CreateGroup(p string) error {
	return c.insert(Clean(p), KindGroup, 0)
}

// CreateSlot creates a single-element slot of the given dtype, holding the
// zero value. The parent must already be a group.
func (c *Container) CreateSlot(p string, dtype DType) error {
	if dtype != DTypeInt32 && dtype != DTypeString {
		return errors.NewInvalidRequest(fmt.Sprintf("unsupported dtype %d", dtype))
	}
	return c.insert(Clean(p), KindSlot, dtype)
}

func (c *Container) insert(p string, kind Kind, dtype DType) error {
	if c.readOnly {
		return errors.NewReadOnly(c.path)
	}
	if p == "/" {
		return errors.NewAlreadyExists(p)
	}

	parent, name := path.Split(p)
	parent = Clean(parent)
	parentKind, err := c.Kind(parent)
	if err != nil {
		return err
	}
	switch parentKind {
	case KindNone:
		return errors.NewSchema(p, fmt.Sprintf("parent group %s does not exist", parent))
	case KindSlot:
		return errors.NewSchema(p, fmt.Sprintf("parent %s is a slot, not a group", parent))
	}

	var (
		query string
		args  []any
	)
	if kind == KindGroup {
		query = `INSERT INTO nodes (path, parent, name, kind) VALUES (?, ?, ?, ?)`
		args = []any{p, parent, name, int(KindGroup)}
	} else {
		var intValue sql.NullInt64
		var strValue sql.NullString
		if dtype == DTypeInt32 {
			intValue = sql.NullInt64{Int64: 0, Valid: true}
		} else {
			strValue = sql.NullString{String: "", Valid: true}
		}
		query = `
			INSERT INTO nodes (path, parent, name, kind, dtype, shape, chunks, compression, int_value, str_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		args = []any{p, parent, name, int(KindSlot), int(dtype), slotShape, slotChunks, slotCompression, intValue, strValue}
	}

	if _, err := c.db.Exec(query, args...); err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewAlreadyExists(p)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports primary key collisions as "UNIQUE constraint failed: ..."
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Has reports whether a node exists at p.
func (c *Container) Has(p string) (bool, error) {
	kind, err := c.Kind(p)
	if err != nil {
		return false, err
	}
	return kind != KindNone, nil
}

// Kind returns the kind of node at p, or KindNone if there is none.
func (c *Container) Kind(p string) (Kind, error) {
	var kind int
	err := c.db.QueryRow(`SELECT kind FROM nodes WHERE path = ?`, Clean(p)).Scan(&kind)
	if err == sql.ErrNoRows {
		return KindNone, nil
	}
	if err != nil {
		return KindNone, errors.NewInternal(err)
	}
	return Kind(kind), nil
}

// Info returns the layout metadata of the slot at p.
func (c *Container) Info(p string) (*Info, error) {
	p = Clean(p)
	var (
		kind        int
		dtype       sql.NullInt64
		shape       int
		chunks      int
		compression sql.NullString
	)
	err := c.db.QueryRow(`
		SELECT kind, dtype, shape, chunks, compression
		FROM nodes WHERE path = ?
	`, p).Scan(&kind, &dtype, &shape, &chunks, &compression)
	if err == sql.ErrNoRows {
		return nil, errors.NewSchema(p, "is not a valid dataset")
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if Kind(kind) != KindSlot {
		return nil, errors.NewSchema(p, "is not a valid dataset")
	}
	return &Info{
		Path:        p,
		DType:       DType(dtype.Int64).String(),
		Shape:       shape,
		Chunks:      chunks,
		Compression: compression.String,
	}, nil
}

// Read returns the element held by the slot at p.
func (c *Container) Read(p string) (Value, error) {
	p = Clean(p)
	var (
		kind     int
		dtype    sql.NullInt64
		intValue sql.NullInt64
		strValue sql.NullString
	)
	err := c.db.QueryRow(`
		SELECT kind, dtype, int_value, str_value
		FROM nodes WHERE path = ?
	`, p).Scan(&kind, &dtype, &intValue, &strValue)
	if err == sql.ErrNoRows {
		return Value{}, errors.NewSchema(p, "is not a valid dataset")
	}
	if err != nil {
		return Value{}, errors.NewInternal(err)
	}
	if Kind(kind) != KindSlot {
		return Value{}, errors.NewSchema(p, "is not a valid dataset")
	}

	v := Value{DType: DType(dtype.Int64)}
	if v.DType == DTypeInt32 {
		v.Int = int32(intValue.Int64)
	} else {
		v.Str = strValue.String
	}
	return v, nil
}

// Write stores value as the single element of the slot at p, converting it
// to the slot's dtype.
func (c *Container) Write(p string, value any) error {
	p = Clean(p)
	if c.readOnly {
		return errors.NewReadOnly(c.path)
	}

	current, err := c.Read(p)
	if err != nil {
		return err
	}

	var res sql.Result
	if current.DType == DTypeInt32 {
		n, err := toInt32(p, value)
		if err != nil {
			return err
		}
		res, err = c.db.Exec(`UPDATE nodes SET int_value = ? WHERE path = ?`, int64(n), p)
		if err != nil {
			return errors.NewInternal(err)
		}
	} else {
		s, err := toString(p, value)
		if err != nil {
			return err
		}
		res, err = c.db.Exec(`UPDATE nodes SET str_value = ? WHERE path = ?`, s, p)
		if err != nil {
			return errors.NewInternal(err)
		}
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewSchema(p, "is not a valid dataset")
	}
	return nil
}

// Children lists the direct children of the group at p in name order.
func (c *Container) Children(p string) ([]Node, error) {
	p = Clean(p)
	kind, err := c.Kind(p)
	if err != nil {
		return nil, err
	}
	if kind != KindGroup {
		return nil, errors.NewSchema(p, "is not a valid group")
	}

	rows, err := c.db.Query(`
		SELECT path, name, kind FROM nodes
		WHERE parent = ?
		ORDER BY name
	`, p)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var (
			n    Node
			kind int
		)
		if err := rows.Scan(&n.Path, &n.Name, &kind); err != nil {
			return nil, errors.NewInternal(err)
		}
		n.Kind = Kind(kind)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return nodes, nil
}

// Delete removes the node at p and, for a group, everything beneath it.
func (c *Container) Delete(p string) error {
	p = Clean(p)
	if c.readOnly {
		return errors.NewReadOnly(c.path)
	}
	if p == "/" {
		return errors.NewInvalidRequest("cannot delete the root group")
	}

	// Descendants sort between p+"/" and p+"0" ('0' follows '/').
	res, err := c.db.Exec(`
		DELETE FROM nodes
		WHERE path = ? OR (path >= ? AND path < ?)
	`, p, p+"/", p+"0")
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewSchema(p, "does not exist")
	}
	return nil
}

// toInt32 converts a caller-supplied value for an int32 slot.
func toInt32(p string, value any) (int32, error) {
	var n int64
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		n = int64(v)
	case int32:
		return v, nil
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.NewSchema(p, fmt.Sprintf("cannot store %v in an int32 slot", v))
		}
		n = int64(v)
	case json.Number:
		parsed, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return 0, errors.NewSchema(p, fmt.Sprintf("cannot store %q in an int32 slot", v.String()))
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, errors.NewSchema(p, fmt.Sprintf("cannot store %q in an int32 slot", v))
		}
		n = parsed
	case Value:
		if v.DType == DTypeInt32 {
			return v.Int, nil
		}
		return toInt32(p, v.Str)
	default:
		return 0, errors.NewInvalidRequest(fmt.Sprintf("%s: unsupported value type %T", p, value))
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, errors.NewSchema(p, fmt.Sprintf("value %d out of int32 range", n))
	}
	return int32(n), nil
}

// toString converts a caller-supplied value for a string slot.
func toString(p string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case Value:
		return v.String(), nil
	default:
		return "", errors.NewInvalidRequest(fmt.Sprintf("%s: unsupported value type %T", p, value))
	}
}
