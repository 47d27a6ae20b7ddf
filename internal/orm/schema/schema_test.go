package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDomain DomainType = "Test"

var (
	deptType = testDomain.EntityType("dept")
	deptID   = NewColumn[int](deptType, "deptno")
	deptName = NewColumn[string](deptType, "dname")
	deptLoc  = NewColumn[string](deptType, "loc")

	empType    = testDomain.EntityType("emp")
	empID      = NewColumn[int](empType, "empno")
	empName    = NewColumn[string](empType, "ename")
	empSalary  = NewColumn[float64](empType, "sal")
	empDeptNo  = NewColumn[int](empType, "deptno")
	empMgrNo   = NewColumn[int](empType, "mgr")
	empDeptFK  = NewForeignKey("dept_fk", Ref(empDeptNo, deptID))
	empMgrFK   = NewForeignKey("mgr_fk", Ref(empMgrNo, empID))
	empDouble  = NewAttr[float64](empType, "double_sal")
	empSummary = NewAttr[string](empType, "summary")
)

func deptDefinition() *DefinitionBuilder {
	return Define(deptType,
		deptID.PrimaryKey(),
		deptName.Column().Nullable(false).MaxLength(14),
		deptLoc.Column().MaxLength(13),
	).Table("scott.dept").OrderBy(Ascending(deptName))
}

func empDefinition() *DefinitionBuilder {
	return Define(empType,
		empID.PrimaryKey().ColumnName("empno"),
		empName.Column().Nullable(false).MaxLength(10),
		empSalary.Column().Range(1000, 10000),
		empDeptNo.Column().Nullable(false),
		empMgrNo.Column(),
		empDeptFK.Define().FetchDepth(2),
		empMgrFK.Define(),
		empDouble.Derived(func(sources SourceValues) float64 {
			return empSalary.Get(sources) * 2
		}, empSalary).Cacheable(),
		empSummary.Derived(func(sources SourceValues) string {
			return empName.Get(sources)
		}, empName, empDouble),
	).Table("scott.emp")
}

func testEntities(t *testing.T) *Entities {
	t.Helper()

	domain := NewDomain(testDomain)
	require.NoError(t, domain.Add(deptDefinition()))
	require.NoError(t, domain.Add(empDefinition()))
	return domain.Entities()
}

func TestAttributeIdentity(t *testing.T) {
	assert.True(t, SameAttribute(deptID, NewColumn[int](deptType, "deptno")))
	assert.False(t, SameAttribute(deptID, empDeptNo))
	assert.False(t, SameAttribute(deptID, nil))
	assert.Equal(t, "dept.deptno", deptID.String())
	assert.Equal(t, KindInteger, deptID.Kind())
	assert.Equal(t, KindString, deptName.Kind())
	assert.Equal(t, KindFloat, empSalary.Kind())
	assert.Equal(t, KindEntity, empDeptFK.Kind())
}

func TestValidateType(t *testing.T) {
	assert.NoError(t, deptID.ValidateType(10))
	assert.NoError(t, deptID.ValidateType(nil))
	assert.ErrorIs(t, deptID.ValidateType("10"), ErrContractViolation)
	assert.ErrorIs(t, deptID.ValidateType(int64(10)), ErrContractViolation)
	assert.ErrorIs(t, empDeptFK.ValidateType("dept"), ErrContractViolation)
}

func TestForeignKey(t *testing.T) {
	assert.Equal(t, empType, empDeptFK.EntityType())
	assert.Equal(t, deptType, empDeptFK.ReferencedType())
	assert.False(t, empDeptFK.Composite())

	ref, ok := empDeptFK.Reference(empDeptNo)
	require.True(t, ok)
	assert.True(t, SameAttribute(deptID, ref.Foreign))

	assert.Panics(t, func() { NewForeignKey("empty") })
	assert.Panics(t, func() { NewForeignKey("mixed", Ref(empDeptNo, deptID), Ref(empMgrNo, empID)) })
}

func TestEntityDefinition(t *testing.T) {
	entities := testEntities(t)

	emp := entities.MustDefinition(empType)
	assert.Equal(t, "scott.emp", emp.TableName())
	assert.Len(t, emp.Attributes(), 9)
	assert.Len(t, emp.Columns(), 5)
	require.Len(t, emp.PrimaryKeyColumns(), 1)
	assert.True(t, SameAttribute(empID, emp.PrimaryKeyColumns()[0].Attribute()))

	pk, ok := emp.Column(empID)
	require.True(t, ok)
	assert.False(t, pk.Nullable())
	assert.False(t, pk.Updatable())
	assert.True(t, pk.Insertable())

	fk, ok := emp.ForeignKey(empDeptFK)
	require.True(t, ok)
	assert.Equal(t, 2, fk.FetchDepth())
	assert.False(t, fk.Nullable())
	assert.Same(t, entities.MustDefinition(deptType), fk.Referenced())

	mgr, ok := emp.ForeignKey(empMgrFK)
	require.True(t, ok)
	assert.True(t, mgr.Nullable())
	assert.Same(t, emp, mgr.Referenced())

	assert.Len(t, emp.ForeignKeysOf(empDeptNo), 1)
	assert.Empty(t, emp.ForeignKeysOf(empName))

	derived := emp.DerivedFrom(empSalary)
	require.Len(t, derived, 1)
	assert.True(t, derived[0].Cacheable())
	assert.Len(t, emp.DerivedFrom(empDouble), 1)

	_, ok = emp.Attribute(deptName)
	assert.False(t, ok)
}

func TestDefinitionValidation(t *testing.T) {
	t.Run("foreign attribute", func(t *testing.T) {
		domain := NewDomain(testDomain)
		err := domain.Add(Define(deptType, deptID.PrimaryKey(), empName.Column()))
		assert.ErrorIs(t, err, ErrContractViolation)
	})

	t.Run("duplicate attribute", func(t *testing.T) {
		domain := NewDomain(testDomain)
		err := domain.Add(Define(deptType, deptID.PrimaryKey(), deptID.Column()))
		assert.ErrorIs(t, err, ErrContractViolation)
	})

	t.Run("duplicate entity type", func(t *testing.T) {
		domain := NewDomain(testDomain)
		require.NoError(t, domain.Add(deptDefinition()))
		assert.ErrorIs(t, domain.Add(deptDefinition()), ErrContractViolation)
	})

	t.Run("undefined referenced entity", func(t *testing.T) {
		domain := NewDomain(testDomain)
		err := domain.Add(empDefinition())
		assert.ErrorIs(t, err, ErrContractViolation)
		assert.Contains(t, err.Error(), "not defined")
	})

	t.Run("missing reference column", func(t *testing.T) {
		domain := NewDomain(testDomain)
		require.NoError(t, domain.Add(deptDefinition()))
		err := domain.Add(Define(empType, empID.PrimaryKey(), empDeptFK.Define()))
		assert.ErrorIs(t, err, ErrContractViolation)
	})

	t.Run("primary key gaps", func(t *testing.T) {
		domain := NewDomain(testDomain)
		err := domain.Add(Define(deptType, deptID.Column().PrimaryKeyIndex(1)))
		assert.ErrorIs(t, err, ErrContractViolation)
	})

	t.Run("circular derived attributes", func(t *testing.T) {
		a := NewAttr[int](deptType, "a")
		b := NewAttr[int](deptType, "b")
		domain := NewDomain(testDomain)
		err := domain.Add(Define(deptType,
			deptID.PrimaryKey(),
			a.Derived(func(SourceValues) int { return 1 }, b),
			b.Derived(func(SourceValues) int { return 2 }, a),
		))
		require.ErrorIs(t, err, ErrContractViolation)
		assert.Contains(t, err.Error(), "circular")
	})

	t.Run("wrong domain", func(t *testing.T) {
		domain := NewDomain("Other")
		assert.ErrorIs(t, domain.Add(deptDefinition()), ErrContractViolation)
	})
}

func TestColumnBuilderContracts(t *testing.T) {
	assert.Panics(t, func() { deptID.Column().MaxLength(10) })
	assert.Panics(t, func() { deptName.Column().Range(0, 1) })
	assert.Panics(t, func() { empDeptFK.Define().ReadOnly(empName) })
	assert.Panics(t, func() { empDeptFK.Define().FetchDepth(-1) })
	assert.Panics(t, func() { empDouble.Derived(func(SourceValues) float64 { return 0 }) })
}

func TestWritable(t *testing.T) {
	entities := testEntities(t)
	emp := entities.MustDefinition(empType)

	name, _ := emp.Attribute(empName)
	assert.True(t, Writable(name))
	pk, _ := emp.Attribute(empID)
	assert.False(t, Writable(pk))
	derived, _ := emp.Attribute(empDouble)
	assert.False(t, Writable(derived))

	transient := NewAttr[string](deptType, "note")
	assert.True(t, Writable(transient.Transient().build()))
	assert.False(t, Writable(transient.Transient().ModifiesEntity(false).build()))
}

func TestOrderBy(t *testing.T) {
	entities := testEntities(t)
	emp := entities.MustDefinition(empType)

	orderBy := Ascending(empName).Descending(empSalary, empID)
	assert.Equal(t, "ename, sal desc, empno desc", orderBy.SQL(emp))
	assert.Len(t, orderBy.Orders(), 3)

	dept := entities.MustDefinition(deptType)
	require.NotNil(t, dept.OrderBy())
	assert.Equal(t, "dname", dept.OrderBy().SQL(dept))
}

func TestDependencyOrder(t *testing.T) {
	entities := testEntities(t)

	ordered, err := entities.DependencyOrder()
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, deptType, ordered[0].Type())
	assert.Equal(t, empType, ordered[1].Type())

	stats := entities.Stats()
	assert.Equal(t, 2, stats.EntityTypes)
	assert.Equal(t, 2, stats.ForeignKeys)
	assert.Equal(t, 12, stats.Attributes)
}

func TestDependencyGraph(t *testing.T) {
	graph := newDependencyGraph()
	graph.addEdge("c", "b")
	graph.addEdge("b", "a")
	graph.addNode("d")

	sorted, err := graph.topologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "b", "c"}, sorted)

	graph.addEdge("a", "c")
	cycles := graph.detectCycles()
	require.Len(t, cycles, 1)
	assert.True(t, strings.Contains(formatCycles(cycles), "->"))

	_, err = graph.topologicalSort()
	assert.Error(t, err)
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual(nil, nil))
	assert.False(t, ValuesEqual(nil, 1))
	assert.True(t, ValuesEqual(1, 1))
	assert.False(t, ValuesEqual(1, int64(1)))
	assert.True(t, ValuesEqual([]byte("ab"), []byte("ab")))
	assert.False(t, ValuesEqual([]byte("ab"), "ab"))
	assert.True(t, ValuesEqual("x", "x"))
}
