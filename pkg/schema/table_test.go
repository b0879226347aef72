package schema_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/schema"
)

const jobsYAML = `
name: jobs
primary_key: [id]
columns:
  - name: id
    type: identity
  - name: name
    type: string
    length: 64
    not_null: true
  - name: attempts
    type: int
    not_null: true
    default: "0"
  - name: payload
    type: json
`

func TestLoadTable(t *testing.T) {
	t.Parallel()

	table, err := schema.LoadTable(strings.NewReader(jobsYAML))
	require.NoError(t, err)

	assert.Equal(t, "jobs", table.Name)
	assert.Equal(t, "public", table.SchemaName())
	assert.Equal(t, "public.jobs", table.QualifiedName())
	assert.Equal(t, []string{"id"}, table.PrimaryKey)
	require.Len(t, table.Columns, 4)

	col, ok := table.Column("attempts")
	require.True(t, ok)
	assert.Equal(t, schema.TypeInt, col.Type)
	assert.True(t, col.NotNull)
	assert.Equal(t, "0", col.Default)
}

func TestLoadTable_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown field", yaml: "name: x\ncolour: red\ncolumns: [{name: a, type: int}]"},
		{name: "unknown type", yaml: "name: x\ncolumns: [{name: a, type: decimal}]"},
		{name: "duplicate column", yaml: "name: x\ncolumns: [{name: a, type: int}, {name: a, type: text}]"},
		{name: "undeclared primary key", yaml: "name: x\nprimary_key: [id]\ncolumns: [{name: a, type: int}]"},
		{name: "no columns", yaml: "name: x\ncolumns: []"},
		{name: "no name", yaml: "columns: [{name: a, type: int}]"},
		{name: "malformed", yaml: "name: [x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := schema.LoadTable(strings.NewReader(tt.yaml))
			assert.ErrorIs(t, err, schema.ErrInvalidTable)
		})
	}
}

func TestLoadTableFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(jobsYAML), 0o600))

	table, err := schema.LoadTableFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jobs", table.Name)

	_, err = schema.LoadTableFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestColumnType(t *testing.T) {
	t.Parallel()

	assert.True(t, schema.TypeIdentity.Serial())
	assert.True(t, schema.TypeBigSerial.Serial())
	assert.False(t, schema.TypeBigInt.Serial())
	assert.True(t, schema.TypeUUID.Valid())
	assert.False(t, schema.ColumnType("money").Valid())
}
