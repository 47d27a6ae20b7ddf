package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entityorm/internal/demo"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"Name", "Kind", "Nullable"}, true)
	table.AddRow("deptno", "int", "no")
	table.AddRow("dname", "string", "no")
	table.AddRow("loc", "string", "yes")
	table.Render()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Name    Kind    Nullable", lines[0])
	assert.Equal(t, "──────  ──────  ────────", lines[1])
	assert.Equal(t, "deptno  int     no", lines[2])
	assert.Equal(t, "loc     string  yes", lines[4])
}

func TestTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, nil, true).Render()
	assert.Empty(t, buf.String())
}

func TestEntityTable(t *testing.T) {
	entities := demo.MustEntities()
	depts := demo.Departments(entities)

	var buf bytes.Buffer
	EntityTable(&buf, entities.MustDefinition(demo.DeptType), depts[:2], true)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "No.  Name        Location", lines[0])
	assert.Equal(t, "10   ACCOUNTING  NEW YORK", lines[2])
	assert.Equal(t, "20   RESEARCH    DALLAS", lines[3])
}

func TestEntityTable_ForeignKeys(t *testing.T) {
	entities := demo.MustEntities()
	sales := demo.Departments(entities)[2]
	emp := demo.Employee(entities, "ALLEN", "SALESMAN", 1600, sales)

	var buf bytes.Buffer
	EntityTable(&buf, entities.MustDefinition(demo.EmpType), nil, true)
	assert.Contains(t, buf.String(), "Department")
	assert.Contains(t, buf.String(), "Manager")

	buf.Reset()
	EntityTable(&buf, entities.MustDefinition(demo.EmpType), []entity.Entity{emp}, true)
	assert.Contains(t, buf.String(), "ALLEN")
	assert.Contains(t, buf.String(), "SALES")
}

func TestFormatValue(t *testing.T) {
	entities := demo.MustEntities()
	dept := demo.Departments(entities)[0]

	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "42", FormatValue(42))
	assert.Equal(t, "ACCOUNTING", FormatValue(dept))
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewKeyValueTable(&buf, true)
	table.AddRow("Table", "dept")
	table.AddRow("Read only", "false")
	table.Render()

	assert.Equal(t, "Table:     dept\nRead only: false\n", buf.String())
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "dept", true)
	assert.Equal(t, "dept\n────\n", buf.String())
}
