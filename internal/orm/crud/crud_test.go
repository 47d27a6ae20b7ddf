package crud_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/entityorm/internal/demo"
	"github.com/conduit-lang/entityorm/internal/orm/condition"
	"github.com/conduit-lang/entityorm/internal/orm/crud"
	"github.com/conduit-lang/entityorm/internal/orm/database"
	"github.com/conduit-lang/entityorm/internal/orm/dialect"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

type fixture struct {
	db       *database.DB
	ops      *crud.Operations
	entities *schema.Entities
	depts    map[string]entity.Entity
	emps     map[string]entity.Entity
}

// setupTestDB creates an in-memory database holding the demo tables
func setupTestDB(t *testing.T, opts ...crud.Option) *fixture {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// a single connection keeps the in-memory database shared
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	d, err := dialect.Get(dialect.SQLite)
	require.NoError(t, err)
	db := database.New(sqlDB, d)
	require.NoError(t, demo.CreateTables(context.Background(), db))

	entities := demo.MustEntities()
	return &fixture{
		db:       db,
		ops:      crud.New(db, entities, opts...),
		entities: entities,
		depts:    make(map[string]entity.Entity),
		emps:     make(map[string]entity.Entity),
	}
}

// seed inserts the departments and three employees: KING, JONES managed by
// KING and SCOTT managed by JONES
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	departments := demo.Departments(f.entities)
	_, err := f.ops.Insert(ctx, departments...)
	require.NoError(t, err)
	for _, dept := range departments {
		f.depts[demo.DeptName.Get(dept)] = dept
	}

	king := demo.Employee(f.entities, "KING", "PRESIDENT", 5000, f.depts["ACCOUNTING"])
	_, err = f.ops.Insert(ctx, king)
	require.NoError(t, err)

	jones := demo.Employee(f.entities, "JONES", "MANAGER", 2975, f.depts["RESEARCH"])
	_, err = jones.Put(demo.EmpMgrFK, king)
	require.NoError(t, err)
	scott := demo.Employee(f.entities, "SCOTT", "ANALYST", 3000, f.depts["RESEARCH"])
	_, err = f.ops.Insert(ctx, jones)
	require.NoError(t, err)
	_, err = scott.Put(demo.EmpMgrFK, jones)
	require.NoError(t, err)
	_, err = f.ops.Insert(ctx, scott)
	require.NoError(t, err)

	f.emps["KING"], f.emps["JONES"], f.emps["SCOTT"] = king, jones, scott
}

func names(entities []entity.Entity) []string {
	result := make([]string, len(entities))
	for i, e := range entities {
		result[i] = demo.EmpName.Get(e)
	}
	return result
}

func TestInsert(t *testing.T) {
	f := setupTestDB(t)
	f.seed(t)
	ctx := context.Background()

	assert.Equal(t, 1, demo.EmpID.Get(f.emps["KING"]))
	assert.Equal(t, 2, demo.EmpID.Get(f.emps["JONES"]))
	assert.Equal(t, 3, demo.EmpID.Get(f.emps["SCOTT"]))
	assert.False(t, f.emps["SCOTT"].Modified())

	count, err := f.ops.Count(ctx, condition.All(demo.EmpType))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = f.ops.Count(ctx, condition.Column(demo.EmpDeptNo).EqualTo(20))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInsertIdentity(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	master := entity.New(f.entities.MustDefinition(demo.MasterType))
	require.NoError(t, demo.MasterID1.Set(master, 1))
	require.NoError(t, demo.MasterID2.Set(master, 2))
	require.NoError(t, demo.MasterCode.Set(master, 100))
	_, err := f.ops.Insert(ctx, master)
	require.NoError(t, err)

	detail := entity.New(f.entities.MustDefinition(demo.DetailType))
	require.NoError(t, demo.DetailName.Set(detail, "first"))
	_, err = detail.Put(demo.DetailMasterFK, master)
	require.NoError(t, err)

	keys, err := f.ops.Insert(ctx, detail)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, 1, keys[0].Value())

	selected, err := f.ops.SelectKey(ctx, keys[0])
	require.NoError(t, err)
	assert.True(t, selected.Loaded(demo.DetailMasterFK))
	assert.Equal(t, 100, demo.MasterCode.Get(selected.Entity(demo.DetailMasterFK)))
}

func TestInsertErrors(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	t.Run("read only", func(t *testing.T) {
		log := entity.New(f.entities.MustDefinition(demo.LogType))
		require.NoError(t, demo.LogEntry.Set(log, "started"))
		_, err := f.ops.Insert(ctx, log)
		assert.ErrorIs(t, err, crud.ErrReadOnly)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := f.ops.Insert(ctx, entity.New(f.entities.MustDefinition(demo.EmpType)))
		assert.True(t, crud.IsValidationFailed(err))
	})

	t.Run("immutable", func(t *testing.T) {
		dept := demo.Departments(f.entities)[0].Immutable()
		_, err := f.ops.Insert(ctx, dept)
		assert.ErrorIs(t, err, schema.ErrContractViolation)
	})

	t.Run("unique violation rolls back", func(t *testing.T) {
		departments := demo.Departments(f.entities)
		_, err := f.ops.Insert(ctx, departments[0], demo.Departments(f.entities)[0])
		assert.True(t, crud.IsUniqueViolation(err))

		count, err := f.ops.Count(ctx, condition.All(demo.DeptType))
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestSelect(t *testing.T) {
	f := setupTestDB(t)
	f.seed(t)
	ctx := context.Background()

	t.Run("default order", func(t *testing.T) {
		emps, err := f.ops.Select(ctx, condition.Where(condition.All(demo.EmpType)).Build())
		require.NoError(t, err)
		assert.Equal(t, []string{"KING", "SCOTT", "JONES"}, names(emps))
	})

	t.Run("foreign keys", func(t *testing.T) {
		scott, err := f.ops.SelectSingle(ctx, condition.Column(demo.EmpName).EqualTo("SCOTT"))
		require.NoError(t, err)
		assert.False(t, scott.Modified())

		require.True(t, scott.Loaded(demo.EmpDeptFK))
		assert.Equal(t, "RESEARCH", demo.DeptName.Get(scott.Entity(demo.EmpDeptFK)))

		require.True(t, scott.Loaded(demo.EmpMgrFK))
		jones := scott.Entity(demo.EmpMgrFK)
		assert.Equal(t, "JONES", demo.EmpName.Get(jones))
		assert.True(t, jones.Loaded(demo.EmpDeptFK))

		require.True(t, jones.Loaded(demo.EmpMgrFK))
		king := jones.Entity(demo.EmpMgrFK)
		assert.Equal(t, "KING", demo.EmpName.Get(king))
		assert.False(t, king.Loaded(demo.EmpDeptFK))
		assert.True(t, king.IsNull(demo.EmpMgrFK))
	})

	t.Run("fetch depth", func(t *testing.T) {
		scott, err := f.ops.SelectSingle(ctx, condition.Column(demo.EmpName).EqualTo("SCOTT"))
		require.NoError(t, err)
		assert.True(t, scott.Loaded(demo.EmpDeptFK))

		emps, err := f.ops.Select(ctx, condition.Where(condition.Column(demo.EmpName).EqualTo("SCOTT")).
			FetchDepth(0).
			Build())
		require.NoError(t, err)
		require.Len(t, emps, 1)
		assert.False(t, emps[0].Loaded(demo.EmpDeptFK))
		assert.Equal(t, 20, emps[0].Key(demo.EmpDeptFK).Value())

		emps, err = f.ops.Select(ctx, condition.Where(condition.Column(demo.EmpName).EqualTo("SCOTT")).
			ForeignKeyFetchDepth(demo.EmpMgrFK, 1).
			Build())
		require.NoError(t, err)
		require.Len(t, emps, 1)
		require.True(t, emps[0].Loaded(demo.EmpMgrFK))
		assert.False(t, emps[0].Entity(demo.EmpMgrFK).Loaded(demo.EmpMgrFK))
	})

	t.Run("missing reference", func(t *testing.T) {
		_, err := f.db.Exec(ctx, "update emp set deptno = 99 where ename = 'KING'")
		require.NoError(t, err)
		t.Cleanup(func() {
			_, err := f.db.Exec(ctx, "update emp set deptno = 10 where ename = 'KING'")
			require.NoError(t, err)
		})

		king, err := f.ops.SelectSingle(ctx, condition.Column(demo.EmpName).EqualTo("KING"))
		require.NoError(t, err)
		dept := king.Entity(demo.EmpDeptFK)
		require.NotNil(t, dept)
		assert.Equal(t, 99, demo.DeptID.Get(dept))
		assert.False(t, dept.Contains(demo.DeptName))
	})

	t.Run("limit offset", func(t *testing.T) {
		emps, err := f.ops.Select(ctx, condition.Where(condition.All(demo.EmpType)).
			OrderBy(schema.Ascending(demo.EmpName)).
			Limit(1).
			Offset(1).
			Build())
		require.NoError(t, err)
		assert.Equal(t, []string{"KING"}, names(emps))
	})

	t.Run("attributes", func(t *testing.T) {
		emps, err := f.ops.Select(ctx, condition.Where(condition.Column(demo.EmpName).EqualTo("JONES")).
			Attributes(demo.EmpName).
			Build())
		require.NoError(t, err)
		require.Len(t, emps, 1)
		assert.True(t, emps[0].Contains(demo.EmpID))
		assert.True(t, emps[0].Contains(demo.EmpName))
		assert.False(t, emps[0].Contains(demo.EmpSalary))
		assert.False(t, emps[0].Loaded(demo.EmpMgrFK))
	})

	t.Run("single", func(t *testing.T) {
		_, err := f.ops.SelectSingle(ctx, condition.Column(demo.EmpName).EqualTo("BLAKE"))
		assert.True(t, crud.IsNotFound(err))

		_, err = f.ops.SelectSingle(ctx, condition.Column(demo.EmpDeptNo).EqualTo(20))
		assert.ErrorIs(t, err, crud.ErrMultipleRecords)
	})

	t.Run("by key", func(t *testing.T) {
		selected, err := f.ops.SelectByKey(ctx, f.depts["SALES"].PrimaryKey(), f.emps["KING"].PrimaryKey(), f.depts["OPERATIONS"].PrimaryKey())
		require.NoError(t, err)
		require.Len(t, selected, 3)
		assert.Equal(t, demo.DeptType, selected[0].Type())
		assert.Equal(t, demo.DeptType, selected[1].Type())
		assert.Equal(t, demo.EmpType, selected[2].Type())
	})

	t.Run("values", func(t *testing.T) {
		values, err := f.ops.SelectValues(ctx, demo.DeptLoc, condition.All(demo.DeptType))
		require.NoError(t, err)
		assert.Equal(t, []any{"BOSTON", "CHICAGO", "DALLAS", "NEW YORK"}, values)

		values, err = f.ops.SelectValues(ctx, demo.EmpJob, condition.Column(demo.EmpDeptNo).EqualTo(20))
		require.NoError(t, err)
		assert.Equal(t, []any{"ANALYST", "MANAGER"}, values)
	})
}

func TestUpdate(t *testing.T) {
	f := setupTestDB(t)
	f.seed(t)
	ctx := context.Background()

	t.Run("modified values", func(t *testing.T) {
		scott := f.emps["SCOTT"]
		require.NoError(t, demo.EmpSalary.Set(scott, 3500))
		updated, err := f.ops.Update(ctx, scott)
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Equal(t, 3500.0, demo.EmpSalary.Get(updated[0]))
		assert.False(t, scott.Modified())
	})

	t.Run("not modified", func(t *testing.T) {
		_, err := f.ops.Update(ctx, f.emps["KING"])
		assert.ErrorContains(t, err, "no modified values")
	})

	t.Run("primary key", func(t *testing.T) {
		operations := f.depts["OPERATIONS"]
		require.NoError(t, demo.DeptID.Set(operations, 45))
		updated, err := f.ops.Update(ctx, operations)
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Equal(t, 45, demo.DeptID.Get(updated[0]))

		count, err := f.ops.Count(ctx, condition.Column(demo.DeptID).EqualTo(40))
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("deleted row", func(t *testing.T) {
		dept := demo.Departments(f.entities)[0]
		require.NoError(t, dept.SaveAll())
		require.NoError(t, demo.DeptID.Set(dept, 50))
		require.NoError(t, dept.Save(demo.DeptID))
		require.NoError(t, demo.DeptLoc.Set(dept, "OSLO"))
		_, err := f.ops.Update(ctx, dept)
		assert.True(t, crud.IsRecordModified(err))
	})

	t.Run("where", func(t *testing.T) {
		updated, err := f.ops.UpdateWhere(ctx, condition.UpdateWhere(condition.Column(demo.EmpDeptNo).EqualTo(20)).
			Set(demo.EmpCommission, 150.0).
			Build())
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated)

		values, err := f.ops.SelectValues(ctx, demo.EmpCommission, condition.All(demo.EmpType))
		require.NoError(t, err)
		assert.Equal(t, []any{150.0}, values)
	})
}

func TestUpdateRollback(t *testing.T) {
	f := setupTestDB(t)
	f.seed(t)
	ctx := context.Background()

	research, sales := f.depts["RESEARCH"], f.depts["SALES"]
	require.NoError(t, demo.DeptLoc.Set(research, "OSLO"))
	require.NoError(t, demo.DeptID.Set(sales, 10))

	_, err := f.ops.Update(ctx, research, sales)
	require.Error(t, err)

	count, err := f.ops.Count(ctx, condition.Column(demo.DeptLoc).EqualTo("OSLO"))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.True(t, research.IsModified(demo.DeptLoc))
	assert.True(t, sales.IsModified(demo.DeptID))

	require.NoError(t, sales.Revert(demo.DeptID))
	updated, err := f.ops.Update(ctx, research)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "OSLO", demo.DeptLoc.Get(updated[0]))
	assert.False(t, research.Modified())
}

func TestOptimisticLocking(t *testing.T) {
	f := setupTestDB(t, crud.WithOptimisticLocking(true))
	f.seed(t)
	ctx := context.Background()

	selectScott := func() entity.Entity {
		scott, err := f.ops.SelectSingle(ctx, condition.Column(demo.EmpName).EqualTo("SCOTT"))
		require.NoError(t, err)
		return scott
	}

	first, second := selectScott(), selectScott()
	require.NoError(t, demo.EmpSalary.Set(first, 3100))
	_, err := f.ops.Update(ctx, first)
	require.NoError(t, err)

	require.NoError(t, demo.EmpSalary.Set(second, 3200))
	_, err = f.ops.Update(ctx, second)
	require.True(t, crud.IsRecordModified(err))

	var modifiedErr *crud.RecordModifiedError
	require.True(t, errors.As(err, &modifiedErr))
	require.NotNil(t, modifiedErr.Current)
	assert.Equal(t, 3100.0, demo.EmpSalary.Get(modifiedErr.Current))
	require.Len(t, modifiedErr.Modified, 1)
	assert.Equal(t, "sal", modifiedErr.Modified[0].Name())

	current := selectScott()
	require.NoError(t, f.ops.Delete(ctx, current.PrimaryKey()))
	require.NoError(t, demo.EmpSalary.Set(current, 3300))
	_, err = f.ops.Update(ctx, current)
	require.True(t, errors.As(err, &modifiedErr))
	assert.Nil(t, modifiedErr.Current)
	assert.Contains(t, err.Error(), "has been deleted")
}

func TestDelete(t *testing.T) {
	f := setupTestDB(t)
	f.seed(t)
	ctx := context.Background()

	scott := f.emps["SCOTT"].PrimaryKey()
	require.NoError(t, f.ops.Delete(ctx, scott))

	count, err := f.ops.Count(ctx, condition.All(demo.EmpType))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	err = f.ops.Delete(ctx, f.emps["JONES"].PrimaryKey(), scott)
	assert.True(t, crud.IsNotFound(err))
	count, err = f.ops.Count(ctx, condition.All(demo.EmpType))
	require.NoError(t, err)
	assert.Equal(t, 2, count, "failed delete must roll back")

	deleted, err := f.ops.DeleteWhere(ctx, condition.Column(demo.DeptLoc).EqualTo("BOSTON"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = f.ops.DeleteWhere(ctx, condition.All(demo.LogType))
	assert.ErrorIs(t, err, crud.ErrReadOnly)
}

func TestAmbientTransaction(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	failure := errors.New("abort")

	err := f.db.Transactions().WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := f.ops.Insert(ctx, demo.Departments(f.entities)...); err != nil {
			return err
		}
		count, err := f.ops.Count(ctx, condition.All(demo.DeptType))
		require.NoError(t, err)
		assert.Equal(t, 4, count)
		return failure
	})
	require.ErrorIs(t, err, failure)

	count, err := f.ops.Count(ctx, condition.All(demo.DeptType))
	require.NoError(t, err)
	assert.Zero(t, count)

	f.seed(t)
	scott := f.emps["SCOTT"]
	require.NoError(t, demo.EmpSalary.Set(scott, 4000))
	err = f.db.Transactions().WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := f.ops.Update(ctx, scott); err != nil {
			return err
		}
		assert.True(t, scott.Modified(), "saved before the outer commit")
		return failure
	})
	require.ErrorIs(t, err, failure)
	assert.True(t, scott.IsModified(demo.EmpSalary))

	err = f.db.Transactions().WithTransaction(ctx, func(ctx context.Context) error {
		_, err := f.ops.Update(ctx, scott)
		return err
	})
	require.NoError(t, err)
	assert.False(t, scott.Modified())
}
