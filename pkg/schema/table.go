package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ColumnType is a portable column type name used in table definitions.
type ColumnType string

const (
	TypeIdentity  ColumnType = "identity"
	TypeSerial    ColumnType = "serial"
	TypeBigSerial ColumnType = "bigserial"
	TypeString    ColumnType = "string"
	TypeText      ColumnType = "text"
	TypeInt       ColumnType = "int"
	TypeBigInt    ColumnType = "bigint"
	TypeSmallInt  ColumnType = "smallint"
	TypeBool      ColumnType = "bool"
	TypeFloat     ColumnType = "float"
	TypeTimestamp ColumnType = "timestamp"
	TypeDate      ColumnType = "date"
	TypeJSON      ColumnType = "json"
	TypeUUID      ColumnType = "uuid"
)

// DefaultStringLength is used for string columns declared without a length.
const DefaultStringLength = 255

type typeInfo struct {
	ddl      string // type used in CREATE/ADD
	base     string // type used in SET DATA TYPE
	dataType string // information_schema.columns.data_type
	serial   bool
}

var types = map[ColumnType]typeInfo{
	TypeIdentity:  {ddl: "bigint GENERATED BY DEFAULT AS IDENTITY", base: "bigint", dataType: "bigint", serial: true},
	TypeSerial:    {ddl: "serial", base: "integer", dataType: "integer", serial: true},
	TypeBigSerial: {ddl: "bigserial", base: "bigint", dataType: "bigint", serial: true},
	TypeString:    {ddl: "varchar", base: "varchar", dataType: "character varying"},
	TypeText:      {ddl: "text", base: "text", dataType: "text"},
	TypeInt:       {ddl: "integer", base: "integer", dataType: "integer"},
	TypeBigInt:    {ddl: "bigint", base: "bigint", dataType: "bigint"},
	TypeSmallInt:  {ddl: "smallint", base: "smallint", dataType: "smallint"},
	TypeBool:      {ddl: "boolean", base: "boolean", dataType: "boolean"},
	TypeFloat:     {ddl: "double precision", base: "double precision", dataType: "double precision"},
	TypeTimestamp: {ddl: "timestamptz", base: "timestamptz", dataType: "timestamp with time zone"},
	TypeDate:      {ddl: "date", base: "date", dataType: "date"},
	TypeJSON:      {ddl: "jsonb", base: "jsonb", dataType: "jsonb"},
	TypeUUID:      {ddl: "uuid", base: "uuid", dataType: "uuid"},
}

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	_, ok := types[t]
	return ok
}

// Serial reports whether the column draws its values from a sequence or identity.
func (t ColumnType) Serial() bool {
	return types[t].serial
}

// Column declares one column of a table.
type Column struct {
	Name    string     `yaml:"name"`
	Type    ColumnType `yaml:"type"`
	Length  int        `yaml:"length,omitempty"`
	NotNull bool       `yaml:"not_null,omitempty"`
	// Default is a raw SQL expression used when the column is created.
	// It does not take part in drift detection.
	Default string `yaml:"default,omitempty"`
}

func (c Column) length() int {
	if c.Type != TypeString {
		return 0
	}
	if c.Length <= 0 {
		return DefaultStringLength
	}
	return c.Length
}

func (c Column) ddlType() string {
	if c.Type == TypeString {
		return "varchar(" + strconv.Itoa(c.length()) + ")"
	}
	return types[c.Type].ddl
}

func (c Column) baseType() string {
	if c.Type == TypeString {
		return "varchar(" + strconv.Itoa(c.length()) + ")"
	}
	return types[c.Type].base
}

// Table declares a table's expected shape.
type Table struct {
	Schema     string   `yaml:"schema,omitempty"`
	Name       string   `yaml:"name"`
	Columns    []Column `yaml:"columns"`
	PrimaryKey []string `yaml:"primary_key,omitempty"`
}

// SchemaName returns the table schema, defaulting to public.
func (t Table) SchemaName() string {
	if t.Schema == "" {
		return "public"
	}
	return t.Schema
}

// QualifiedName returns schema.name for log output.
func (t Table) QualifiedName() string {
	return t.SchemaName() + "." + t.Name
}

// Column returns the declared column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// notNull reports the effective nullability the live column must have.
// Sequence-backed and primary key columns are always NOT NULL in PostgreSQL.
func (t Table) notNull(c Column) bool {
	return c.NotNull || c.Type.Serial() || slices.Contains(t.PrimaryKey, c.Name)
}

// Validate checks names, types and the primary key list.
func (t Table) Validate() error {
	if t.Name == "" {
		return errors.Join(ErrInvalidTable, errors.New("table name is required"))
	}
	if len(t.Columns) == 0 {
		return errors.Join(ErrInvalidTable, fmt.Errorf("table %s has no columns", t.Name))
	}

	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return errors.Join(ErrInvalidTable, fmt.Errorf("table %s: column without a name", t.Name))
		}
		if _, dup := seen[c.Name]; dup {
			return errors.Join(ErrInvalidTable, fmt.Errorf("table %s: duplicate column %q", t.Name, c.Name))
		}
		seen[c.Name] = struct{}{}
		if !c.Type.Valid() {
			return errors.Join(ErrInvalidTable, fmt.Errorf("table %s: column %q has unknown type %q", t.Name, c.Name, c.Type))
		}
		if c.Length < 0 {
			return errors.Join(ErrInvalidTable, fmt.Errorf("table %s: column %q has negative length", t.Name, c.Name))
		}
	}

	for _, pk := range t.PrimaryKey {
		if _, ok := seen[pk]; !ok {
			return errors.Join(ErrInvalidTable, fmt.Errorf("table %s: primary key column %q is not declared", t.Name, pk))
		}
	}
	return nil
}

// LoadTable decodes a YAML table definition and validates it.
func LoadTable(r io.Reader) (Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var t Table
	if err := dec.Decode(&t); err != nil {
		return Table{}, errors.Join(ErrInvalidTable, err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// LoadTableFile reads a YAML table definition from path.
func LoadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()
	return LoadTable(f)
}
