package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/entityorm/internal/cli/ui"
	"github.com/conduit-lang/entityorm/internal/demo"
	"github.com/conduit-lang/entityorm/internal/orm/condition"
	"github.com/conduit-lang/entityorm/internal/orm/dialect"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// sample is a named condition rendered by the render command
type sample struct {
	name      string
	condition condition.Condition
}

// NewRenderCommand creates the render command
func NewRenderCommand(opts *globalOptions) *cobra.Command {
	var dialectName string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render sample conditions over the demo domain",
		Long: `Render sample conditions over the demo domain as where clauses with their
values, using the placeholders of the configured or given dialect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dialectName == "" {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				dialectName = cfg.Database.Dialect
			}
			d, err := dialect.Get(dialectName)
			if err != nil {
				return err
			}
			entities, err := demo.Entities()
			if err != nil {
				return err
			}
			samples, err := sampleConditions(entities)
			if err != nil {
				return err
			}
			writeSamples(cmd.OutOrStdout(), d, entities, samples, opts.noColor)
			return nil
		},
	}
	cmd.Flags().StringVar(&dialectName, "dialect", "", "SQL dialect: postgres, mysql or sqlite3 (default from config)")
	return cmd
}

func sampleConditions(entities *schema.Entities) ([]sample, error) {
	sales := demo.Departments(entities)[2]
	first, err := entity.KeyOf(entities.MustDefinition(demo.MasterType), 1, 1)
	if err != nil {
		return nil, err
	}
	second, err := entity.KeyOf(entities.MustDefinition(demo.MasterType), 1, 2)
	if err != nil {
		return nil, err
	}

	job := condition.Column(demo.EmpJob)
	salary := condition.Column(demo.EmpSalary)
	return []sample{
		{"equal", condition.Column(demo.DeptName).EqualTo("SALES")},
		{"wildcard", condition.Column(demo.EmpName).EqualTo("S%")},
		{"ignore case", condition.Column(demo.DeptLoc).LikeIgnoreCase("new%")},
		{"in", condition.Column(demo.DeptID).In(10, 20, 30)},
		{"between", salary.Between(1000, 3000)},
		{"is null", condition.Column(demo.EmpCommission).IsNull()},
		{"combination", condition.Or(condition.And(job.EqualTo("CLERK"), salary.GreaterThan(1000)), job.In("ANALYST", "MANAGER"))},
		{"foreign key", condition.ForeignKey(demo.EmpDeptFK).EqualTo(sales)},
		{"composite keys", condition.Keys(first, second)},
		{"custom", condition.Custom(demo.EmpSalaryAbove, []schema.Attribute{demo.EmpSalary}, []any{2000.0})},
	}, nil
}

func writeSamples(w io.Writer, d dialect.Dialect, entities *schema.Entities, samples []sample, noColor bool) {
	ui.Header(w, "Conditions ("+d.Name()+")", noColor)
	table := ui.NewTable(w, []string{"Condition", "Type", "Where", "Values"}, noColor)
	for _, s := range samples {
		def := entities.MustDefinition(s.condition.EntityType())
		sql, values := condition.Render(s.condition, def)
		table.AddRow(s.name, def.TableName(), d.Bind(sql), formatValues(values))
	}
	table.Render()
}

func formatValues(values []any) string {
	formatted := make([]string, len(values))
	for i, value := range values {
		formatted[i] = fmt.Sprintf("%v", value)
	}
	return "[" + strings.Join(formatted, ", ") + "]"
}
