package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// run executes the CLI in an empty working directory, so the configuration
// defaults apply
func run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()

	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(oldWd) })

	var stdout, stderr bytes.Buffer
	code := Execute(append(args, "--no-color"), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestVersionCommand(t *testing.T) {
	stdout, _, code := run(t, "version")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "entityorm version: dev")
	assert.Contains(t, stdout, "Go version:")
}

func TestSchemaCommand(t *testing.T) {
	stdout, stderr, code := run(t, "schema")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "Department")
	assert.Contains(t, stdout, "dept_fk")
	assert.Contains(t, stdout, "deptno -> deptno")
	assert.Contains(t, stdout, "Order by: dname")
	assert.Less(t, strings.Index(stdout, "dept\n"), strings.Index(stdout, "emp\n"))
}

func TestSchemaCommand_YAML(t *testing.T) {
	stdout, stderr, code := run(t, "schema", "--yaml")
	require.Equal(t, 0, code, stderr)

	var descriptions []entityDescription
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &descriptions))
	require.Len(t, descriptions, 5)

	positions := make(map[string]int)
	byType := make(map[string]entityDescription)
	for i, description := range descriptions {
		positions[description.Type] = i
		byType[description.Type] = description
	}
	assert.Less(t, positions["dept"], positions["emp"])
	assert.Less(t, positions["master"], positions["detail"])

	emp := byType["emp"]
	assert.Equal(t, "emp", emp.Table)
	assert.True(t, emp.KeyGenerated)
	assert.Equal(t, []string{"annual_sal", "label"}, emp.Derived)
	assert.Equal(t, []string{"selected"}, emp.Transient)
	require.Len(t, emp.ForeignKeys, 2)
	assert.Equal(t, foreignKeyDescription{Name: "dept_fk", References: "dept", Columns: []string{"deptno -> deptno"}, FetchDepth: 1}, emp.ForeignKeys[0])
	assert.Equal(t, 2, emp.ForeignKeys[1].FetchDepth)

	dept := byType["dept"]
	assert.Equal(t, columnDescription{Name: "deptno", Kind: "integer", Caption: "No.", PrimaryKey: true, Nullable: false, Insertable: true, Updatable: true}, dept.Columns[0])
	assert.Equal(t, 14, dept.Columns[1].MaxLength)

	assert.True(t, byType["log"].ReadOnly)
}

func TestSchemaCommand_Selection(t *testing.T) {
	stdout, stderr, code := run(t, "schema", "--yaml", "emp", "dept")
	require.Equal(t, 0, code, stderr)

	var descriptions []entityDescription
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &descriptions))
	require.Len(t, descriptions, 2)
	assert.Equal(t, "dept", descriptions[0].Type)
	assert.Equal(t, "emp", descriptions[1].Type)
}

func TestSchemaCommand_UnknownType(t *testing.T) {
	_, stderr, code := run(t, "schema", "dpt")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "UNKNOWN ENTITY TYPE: cannot find entity type 'dpt'")
	assert.Contains(t, stderr, "Did you mean: dept?")
}

func TestRenderCommand(t *testing.T) {
	stdout, stderr, code := run(t, "render", "--dialect", "postgres")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "Conditions (postgres)")
	assert.Contains(t, stdout, "dname = $1")
	assert.Contains(t, stdout, "ename like $1")
	assert.Contains(t, stdout, "deptno in ($1, $2, $3)")
	assert.Contains(t, stdout, "((job = $1 and sal > $2) or job in ($3, $4))")
	assert.Contains(t, stdout, "((id = $1 and id_2 = $2) or (id = $3 and id_2 = $4))")
	assert.Contains(t, stdout, "sal > $1")
	assert.Contains(t, stdout, "[10, 20, 30]")
}

func TestRenderCommand_ConfiguredDialect(t *testing.T) {
	stdout, stderr, code := run(t, "render")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "Conditions (sqlite3)")
	assert.Contains(t, stdout, "dname = ?")
}

func TestRenderCommand_UnknownDialect(t *testing.T) {
	_, stderr, code := run(t, "render", "--dialect", "oracle")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown dialect: oracle")
}

func TestDemoCommand(t *testing.T) {
	stdout, stderr, code := run(t, "demo")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "✓ created 5 demo tables")
	assert.Contains(t, stdout, "✓ inserted 4 departments and 5 employees")
	assert.Contains(t, stdout, "set the commission of 2 salesmen")
	assert.Contains(t, stdout, "ALLEN")
	assert.Contains(t, stdout, "RESEARCH")
	assert.Contains(t, stdout, "Salary above 2000: 3")
	assert.Contains(t, stdout, "Jobs:              [ANALYST, MANAGER, PRESIDENT, SALESMAN]")
	assert.Contains(t, stdout, "read SCOTT twice through the cache with 1 database load")
	assert.Contains(t, stdout, "the audit log rejected an insert")
	assert.Contains(t, stdout, "Statements")
	assert.Contains(t, stdout, "insert:")
	assert.Contains(t, stdout, "update:")
}

func TestDemoCommand_FetchDepth(t *testing.T) {
	stdout, stderr, code := run(t, "demo", "--fetch-depth", "0")
	require.Equal(t, 0, code, stderr)

	employees := stdout[strings.Index(stdout, "Employees"):strings.Index(stdout, "Salary above")]
	assert.Contains(t, employees, "SCOTT")
	assert.NotContains(t, employees, "RESEARCH")
}

func TestDemoCommand_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entityorm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  dialect: nosuch\n"), 0644))

	_, stderr, code := run(t, "demo", "--config", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown dialect: nosuch")
}
