package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/conduit-lang/entityorm/internal/orm/database"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// Tables holds the statements creating the demo tables
var Tables = []string{
	`create table dept (
		deptno integer not null primary key,
		dname varchar(14) not null,
		loc varchar(13)
	)`,
	`create table emp (
		empno integer not null primary key,
		ename varchar(10) not null,
		job varchar(9),
		mgr integer references emp(empno),
		hiredate timestamp not null,
		sal real not null,
		comm real,
		deptno integer not null references dept(deptno)
	)`,
	`create table master (
		id integer not null,
		id_2 integer not null,
		code integer not null unique,
		name varchar(20),
		primary key (id, id_2)
	)`,
	`create table detail (
		id integer primary key autoincrement,
		master_id integer,
		master_id_2 integer,
		master_code integer,
		name varchar(20)
	)`,
	`create table audit_log (
		entry text not null,
		created timestamp default current_timestamp
	)`,
}

// CreateTables creates the demo tables
func CreateTables(ctx context.Context, db *database.DB) error {
	for _, statement := range Tables {
		if _, err := db.Exec(ctx, statement); err != nil {
			return fmt.Errorf("failed to create demo tables: %w", err)
		}
	}
	return nil
}

// Departments returns the scott departments
func Departments(entities *schema.Entities) []entity.Entity {
	def := entities.MustDefinition(DeptType)
	rows := []struct {
		id        int
		name, loc string
	}{
		{10, "ACCOUNTING", "NEW YORK"},
		{20, "RESEARCH", "DALLAS"},
		{30, "SALES", "CHICAGO"},
		{40, "OPERATIONS", "BOSTON"},
	}
	result := make([]entity.Entity, len(rows))
	for i, row := range rows {
		e := entity.New(def)
		mustSet(DeptID.Set(e, row.id))
		mustSet(DeptName.Set(e, row.name))
		mustSet(DeptLoc.Set(e, row.loc))
		result[i] = e
	}
	return result
}

// Employee returns a new employee in the given department
func Employee(entities *schema.Entities, name, job string, salary float64, department entity.Entity) entity.Entity {
	e := entity.New(entities.MustDefinition(EmpType))
	mustSet(EmpName.Set(e, name))
	mustSet(EmpJob.Set(e, job))
	mustSet(EmpSalary.Set(e, salary))
	mustSet(EmpHiredate.Set(e, time.Date(1981, time.November, 17, 0, 0, 0, 0, time.UTC)))
	if _, err := e.Put(EmpDeptFK, department); err != nil {
		panic(err)
	}
	return e
}

func mustSet(err error) {
	if err != nil {
		panic(err)
	}
}
