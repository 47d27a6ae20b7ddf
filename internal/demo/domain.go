// Package demo defines the demonstration domain: the scott schema with
// departments and employees, a master/detail pair with a composite key and an
// audit log without a primary key.
package demo

import (
	"fmt"
	"time"

	"github.com/conduit-lang/entityorm/internal/orm/keygen"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// Domain is the name of the demo domain
const Domain schema.DomainType = "scott"

// Department
var (
	DeptType = Domain.EntityType("dept")
	DeptID   = schema.NewColumn[int](DeptType, "deptno")
	DeptName = schema.NewColumn[string](DeptType, "dname")
	DeptLoc  = schema.NewColumn[string](DeptType, "loc")
)

// Employee
var (
	EmpType         = Domain.EntityType("emp")
	EmpID           = schema.NewColumn[int](EmpType, "empno")
	EmpName         = schema.NewColumn[string](EmpType, "ename")
	EmpJob          = schema.NewColumn[string](EmpType, "job")
	EmpMgr          = schema.NewColumn[int](EmpType, "mgr")
	EmpHiredate     = schema.NewColumn[time.Time](EmpType, "hiredate")
	EmpSalary       = schema.NewColumn[float64](EmpType, "sal")
	EmpCommission   = schema.NewColumn[float64](EmpType, "comm")
	EmpDeptNo       = schema.NewColumn[int](EmpType, "deptno")
	EmpDeptFK       = schema.NewForeignKey("dept_fk", schema.Ref(EmpDeptNo, DeptID))
	EmpMgrFK        = schema.NewForeignKey("mgr_fk", schema.Ref(EmpMgr, EmpID))
	EmpAnnualSalary = schema.NewAttr[float64](EmpType, "annual_sal")
	EmpLabel        = schema.NewAttr[string](EmpType, "label")
	EmpSelected     = schema.NewAttr[bool](EmpType, "selected")

	// EmpSalaryAbove selects employees with a salary above the given value
	EmpSalaryAbove = EmpType.ConditionType("salary_above")
)

// Master has a composite primary key and a unique code
var (
	MasterType = Domain.EntityType("master")
	MasterID1  = schema.NewColumn[int](MasterType, "id")
	MasterID2  = schema.NewColumn[int](MasterType, "id_2")
	MasterCode = schema.NewColumn[int](MasterType, "code")
	MasterName = schema.NewColumn[string](MasterType, "name")
)

// Detail references master by its composite key and by code
var (
	DetailType         = Domain.EntityType("detail")
	DetailID           = schema.NewColumn[int](DetailType, "id")
	DetailMasterID1    = schema.NewColumn[int](DetailType, "master_id")
	DetailMasterID2    = schema.NewColumn[int](DetailType, "master_id_2")
	DetailMasterCode   = schema.NewColumn[int](DetailType, "master_code")
	DetailName         = schema.NewColumn[string](DetailType, "name")
	DetailMasterFK     = schema.NewForeignKey("master_fk", schema.Ref(DetailMasterID1, MasterID1), schema.Ref(DetailMasterID2, MasterID2))
	DetailMasterCodeFK = schema.NewForeignKey("master_code_fk", schema.Ref(DetailMasterCode, MasterCode))
)

// Audit log entries have no primary key
var (
	LogType    = Domain.EntityType("log")
	LogEntry   = schema.NewColumn[string](LogType, "entry")
	LogCreated = schema.NewColumn[time.Time](LogType, "created")
)

// Jobs are the valid employee jobs
var Jobs = []string{"ANALYST", "CLERK", "MANAGER", "PRESIDENT", "SALESMAN"}

// Entities builds the demo domain definitions
func Entities() (*schema.Entities, error) {
	domain := schema.NewDomain(Domain)
	for _, builder := range []*schema.DefinitionBuilder{
		department(),
		employee(),
		master(),
		detail(),
		auditLog(),
	} {
		if err := domain.Add(builder); err != nil {
			return nil, err
		}
	}
	return domain.Entities(), nil
}

// MustEntities builds the demo domain definitions, panicking on failure
func MustEntities() *schema.Entities {
	entities, err := Entities()
	if err != nil {
		panic(err)
	}
	return entities
}

func department() *schema.DefinitionBuilder {
	return schema.Define(DeptType,
		DeptID.PrimaryKey().Updatable(true).Caption("No.").Range(1, 99),
		DeptName.Column().Caption("Name").Nullable(false).MaxLength(14),
		DeptLoc.Column().Caption("Location").MaxLength(13),
	).Table("dept").
		Caption("Department").
		OrderBy(schema.Ascending(DeptName)).
		StringFactory(func(values schema.SourceValues) string {
			return DeptName.Get(values)
		})
}

func employee() *schema.DefinitionBuilder {
	return schema.Define(EmpType,
		EmpID.PrimaryKey().Caption("No."),
		EmpName.Column().Caption("Name").Nullable(false).MaxLength(10),
		EmpJob.Column().Caption("Job").Items(Jobs...),
		EmpMgr.Column(),
		EmpHiredate.Column().Caption("Hiredate").Nullable(false),
		EmpSalary.Column().Caption("Salary").Nullable(false).Range(1000, 10000),
		EmpCommission.Column().Caption("Commission").Range(100, 2000),
		EmpDeptNo.Column().Nullable(false),
		EmpDeptFK.Define().Caption("Department"),
		EmpMgrFK.Define().Caption("Manager").FetchDepth(2),
		EmpAnnualSalary.Derived(func(values schema.SourceValues) float64 {
			return EmpSalary.Get(values) * 12
		}, EmpSalary).Caption("Annual salary").Cacheable(),
		EmpLabel.Derived(func(values schema.SourceValues) string {
			return fmt.Sprintf("%s (%.0f)", EmpName.Get(values), EmpAnnualSalary.Get(values))
		}, EmpName, EmpAnnualSalary),
		EmpSelected.Transient().ModifiesEntity(false),
	).Table("emp").
		Caption("Employee").
		KeyGenerator(keygen.Increment("emp", "empno")).
		OrderBy(schema.Ascending(EmpDeptNo).Descending(EmpSalary)).
		StringFactory(func(values schema.SourceValues) string {
			return EmpName.Get(values)
		}).
		Condition(EmpSalaryAbove, func([]schema.Attribute, []any) string {
			return "sal > ?"
		})
}

func master() *schema.DefinitionBuilder {
	return schema.Define(MasterType,
		MasterID1.PrimaryKey(),
		MasterID2.Column().PrimaryKeyIndex(1),
		MasterCode.Column().Nullable(false),
		MasterName.Column().MaxLength(20),
	).Table("master")
}

func detail() *schema.DefinitionBuilder {
	return schema.Define(DetailType,
		DetailID.PrimaryKey(),
		DetailMasterID1.Column(),
		DetailMasterID2.Column(),
		DetailMasterCode.Column(),
		DetailName.Column().MaxLength(20),
		DetailMasterFK.Define(),
		DetailMasterCodeFK.Define().ReadOnly(DetailMasterCode),
	).Table("detail").
		KeyGenerator(keygen.Identity())
}

func auditLog() *schema.DefinitionBuilder {
	return schema.Define(LogType,
		LogEntry.Column().Nullable(false),
		LogCreated.Column().ColumnHasDefault(),
	).Table("audit_log").
		ReadOnly()
}
