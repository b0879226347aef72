package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ChangeKind classifies a column difference.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeRemove ChangeKind = "remove"
	ChangeAlter  ChangeKind = "alter"
)

// Change is one column-level difference and the statement that resolves it.
type Change struct {
	Kind      ChangeKind
	Column    string
	Reasons   []string
	Statement string
}

func (c Change) String() string {
	if len(c.Reasons) == 0 {
		return string(c.Kind) + " " + c.Column
	}
	return string(c.Kind) + " " + c.Column + " (" + strings.Join(c.Reasons, ", ") + ")"
}

// Diff is the difference between a live table and its definition.
// A missing table is represented by Missing with the CREATE TABLE in Create.
type Diff struct {
	Table   string
	Missing bool
	Create  string
	Changes []Change
}

// Empty reports whether the live table already matches.
func (d *Diff) Empty() bool {
	return !d.Missing && len(d.Changes) == 0
}

// Statements returns the DDL that brings the live table in line, in execution order.
func (d *Diff) Statements() []string {
	if d.Missing {
		return []string{d.Create}
	}
	stmts := make([]string, 0, len(d.Changes))
	for _, c := range d.Changes {
		stmts = append(stmts, c.Statement)
	}
	return stmts
}

// Err returns the drift as a *SchemaMismatchError, or nil when there is none.
func (d *Diff) Err() error {
	if d.Empty() {
		return nil
	}
	return &SchemaMismatchError{Table: d.Table, Missing: d.Missing, Changes: d.Changes}
}

// liveColumn is a column as reported by information_schema.
type liveColumn struct {
	Name      string
	DataType  string
	MaxLength *int64
	Nullable  bool
	Default   *string
	Identity  bool
}

func (c liveColumn) serial() bool {
	return c.Identity || (c.Default != nil && strings.HasPrefix(*c.Default, "nextval("))
}

func (c liveColumn) describe() string {
	if c.MaxLength != nil && c.DataType == "character varying" {
		return "varchar(" + strconv.FormatInt(*c.MaxLength, 10) + ")"
	}
	return c.DataType
}

func quoteIdent(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

func createStatement(t Table) string {
	lines := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		lines = append(lines, "  "+columnDefinition(t, c))
	}
	if len(t.PrimaryKey) > 0 {
		keys := make([]string, len(t.PrimaryKey))
		for i, k := range t.PrimaryKey {
			keys[i] = quoteIdent(k)
		}
		lines = append(lines, "  PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}
	return "CREATE TABLE " + quoteIdent(t.SchemaName(), t.Name) + " (\n" + strings.Join(lines, ",\n") + "\n)"
}

func columnDefinition(t Table, c Column) string {
	def := quoteIdent(c.Name) + " " + c.ddlType()
	if t.notNull(c) {
		def += " NOT NULL"
	}
	if c.Default != "" && !c.Type.Serial() {
		def += " DEFAULT " + c.Default
	}
	return def
}

// diffColumns compares live columns with the definition. Added and altered
// columns follow definition order, removed columns follow live order.
func diffColumns(t Table, live []liveColumn) []Change {
	table := quoteIdent(t.SchemaName(), t.Name)
	byName := make(map[string]liveColumn, len(live))
	for _, lc := range live {
		byName[lc.Name] = lc
	}

	var changes []Change
	for _, c := range t.Columns {
		lc, ok := byName[c.Name]
		if !ok {
			changes = append(changes, Change{
				Kind:      ChangeAdd,
				Column:    c.Name,
				Statement: "ALTER TABLE " + table + " ADD COLUMN " + columnDefinition(t, c),
			})
			continue
		}
		if change, ok := alterColumn(t, table, c, lc); ok {
			changes = append(changes, change)
		}
	}

	for _, lc := range live {
		if _, ok := t.Column(lc.Name); !ok {
			changes = append(changes, Change{
				Kind:      ChangeRemove,
				Column:    lc.Name,
				Statement: "ALTER TABLE " + table + " DROP COLUMN " + quoteIdent(lc.Name),
			})
		}
	}
	return changes
}

func alterColumn(t Table, table string, c Column, lc liveColumn) (Change, bool) {
	info := types[c.Type]
	col := quoteIdent(c.Name)

	var reasons, actions []string

	wantSerial := c.Type.Serial()
	serialDrift := lc.serial() != wantSerial
	if serialDrift {
		reasons = append(reasons, fmt.Sprintf("serial %t -> %t", lc.serial(), wantSerial))
		if !wantSerial {
			if lc.Identity {
				actions = append(actions, "ALTER COLUMN "+col+" DROP IDENTITY IF EXISTS")
			} else {
				actions = append(actions, "ALTER COLUMN "+col+" DROP DEFAULT")
			}
		}
	}

	typeDrift := lc.DataType != info.dataType
	lengthDrift := c.Type == TypeString && !typeDrift &&
		(lc.MaxLength == nil || *lc.MaxLength != int64(c.length()))
	if typeDrift || lengthDrift {
		reasons = append(reasons, fmt.Sprintf("type %s -> %s", lc.describe(), c.baseType()))
		actions = append(actions, "ALTER COLUMN "+col+" SET DATA TYPE "+c.baseType()+" USING "+col+"::"+c.baseType())
	}

	wantNotNull := t.notNull(c)
	if lc.Nullable == wantNotNull {
		reasons = append(reasons, fmt.Sprintf("not null %t -> %t", !lc.Nullable, wantNotNull))
		if wantNotNull {
			actions = append(actions, "ALTER COLUMN "+col+" SET NOT NULL")
		} else {
			actions = append(actions, "ALTER COLUMN "+col+" DROP NOT NULL")
		}
	}

	if serialDrift && wantSerial {
		actions = append(actions, "ALTER COLUMN "+col+" ADD GENERATED BY DEFAULT AS IDENTITY")
	}

	if len(reasons) == 0 {
		return Change{}, false
	}
	return Change{
		Kind:      ChangeAlter,
		Column:    c.Name,
		Reasons:   reasons,
		Statement: "ALTER TABLE " + table + " " + strings.Join(actions, ", "),
	}, true
}
