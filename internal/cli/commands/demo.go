package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/entityorm/internal/cli/ui"
	"github.com/conduit-lang/entityorm/internal/config"
	"github.com/conduit-lang/entityorm/internal/demo"
	"github.com/conduit-lang/entityorm/internal/orm/cache"
	"github.com/conduit-lang/entityorm/internal/orm/condition"
	"github.com/conduit-lang/entityorm/internal/orm/crud"
	"github.com/conduit-lang/entityorm/internal/orm/database"
	"github.com/conduit-lang/entityorm/internal/orm/dialect"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/metrics"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
	"github.com/conduit-lang/entityorm/internal/orm/serialize"
	"github.com/conduit-lang/entityorm/internal/orm/validation"
)

// NewDemoCommand creates the demo command
func NewDemoCommand(opts *globalOptions) *cobra.Command {
	var createTables bool
	var fetchDepth int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the demo domain against the configured database",
		Long: `Run the demo domain against the configured database, an in-memory SQLite
database by default: create the demo tables, insert departments and employees,
update and select them with foreign key fetch depth, and read an employee
through the entity cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("fetch-depth") {
				cfg.Select.FetchDepth = fetchDepth
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			run, err := newDemoRun(cmd.Context(), cfg, logger, cmd.OutOrStdout(), opts.noColor)
			if err != nil {
				return err
			}
			defer run.close()
			return run.execute(cmd.Context(), createTables)
		},
	}
	cmd.Flags().BoolVar(&createTables, "create-tables", true, "create the demo tables before running")
	cmd.Flags().IntVar(&fetchDepth, "fetch-depth", -1, "foreign key fetch depth of the employee select, -1 for the definition defaults")
	return cmd
}

// demoRun holds the components wired from configuration
type demoRun struct {
	cfg      *config.Config
	out      io.Writer
	noColor  bool
	logger   *zap.Logger
	registry *prometheus.Registry
	db       *database.DB
	entities *schema.Entities
	ops      *crud.Operations
	store    cache.Store
	cache    *cache.EntityCache
}

func newDemoRun(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer, noColor bool) (*demoRun, error) {
	d, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	entities, err := demo.Entities()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	counter, err := metrics.NewQueryCounter(registry)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN, d,
		database.WithCounter(counter),
		database.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if d.Name() == dialect.SQLite {
		// an in-memory database lives as long as its single connection
		db.SQL().SetMaxOpenConns(1)
	}

	store, err := openStore(ctx, cfg.Cache)
	if err != nil {
		db.Close()
		return nil, err
	}
	codec := serialize.NewCodec(serialize.NewRegistry(entities), serialize.Strict(cfg.Serialization.Strict))

	return &demoRun{
		cfg:      cfg,
		out:      out,
		noColor:  noColor,
		logger:   logger,
		registry: registry,
		db:       db,
		entities: entities,
		ops: crud.New(db, entities,
			crud.WithLogger(logger),
			crud.WithValidator(validation.New(validation.Strict(cfg.Validation.Strict))),
			crud.WithOptimisticLocking(cfg.Select.OptimisticLocking),
		),
		store: store,
		cache: cache.New(store, codec, cache.WithLogger(logger), cache.WithTTL(cfg.Cache.TTL)),
	}, nil
}

// openStore opens the redis store when an address is configured, the memory
// store otherwise
func openStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	storeConfig := cache.Config{DefaultTTL: cfg.TTL, Prefix: cfg.Prefix}
	if cfg.RedisAddr == "" {
		return cache.NewMemoryStore(storeConfig, time.Minute), nil
	}
	store, err := cache.NewRedisStoreWithConfig(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Config: storeConfig})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return store, nil
}

func (r *demoRun) close() {
	if closer, ok := r.store.(io.Closer); ok {
		closer.Close()
	}
	r.db.Close()
}

func (r *demoRun) execute(ctx context.Context, createTables bool) error {
	if createTables {
		if err := demo.CreateTables(ctx, r.db); err != nil {
			return err
		}
		ui.WriteSuccess(r.out, fmt.Sprintf("created %d demo tables", len(demo.Tables)), r.noColor)
	}

	employees, err := r.insert(ctx)
	if err != nil {
		return err
	}
	if err := r.update(ctx, employees["SCOTT"]); err != nil {
		return err
	}
	if err := r.selectEmployees(ctx); err != nil {
		return err
	}
	if err := r.readThroughCache(ctx, employees["SCOTT"].PrimaryKey()); err != nil {
		return err
	}
	r.rejectReadOnly(ctx)
	return r.writeStatementCounts()
}

func (r *demoRun) insert(ctx context.Context) (map[string]entity.Entity, error) {
	departments := demo.Departments(r.entities)
	if _, err := r.ops.Insert(ctx, departments...); err != nil {
		return nil, err
	}
	byName := make(map[string]entity.Entity)
	for _, dept := range departments {
		byName[demo.DeptName.Get(dept)] = dept
	}

	king := demo.Employee(r.entities, "KING", "PRESIDENT", 5000, byName["ACCOUNTING"])
	jones := demo.Employee(r.entities, "JONES", "MANAGER", 2975, byName["RESEARCH"])
	scott := demo.Employee(r.entities, "SCOTT", "ANALYST", 3000, byName["RESEARCH"])
	allen := demo.Employee(r.entities, "ALLEN", "SALESMAN", 1600, byName["SALES"])
	ward := demo.Employee(r.entities, "WARD", "SALESMAN", 1250, byName["SALES"])

	employees := map[string]entity.Entity{"KING": king, "JONES": jones, "SCOTT": scott, "ALLEN": allen, "WARD": ward}
	managers := []struct{ employee, manager entity.Entity }{
		{jones, king},
		{scott, jones},
		{allen, king},
		{ward, king},
	}
	// managers are inserted first, each insert generating the key referenced by the next
	if _, err := r.ops.Insert(ctx, king); err != nil {
		return nil, err
	}
	for _, m := range managers {
		if _, err := m.employee.Put(demo.EmpMgrFK, m.manager); err != nil {
			return nil, err
		}
		if _, err := r.ops.Insert(ctx, m.employee); err != nil {
			return nil, err
		}
	}
	ui.WriteSuccess(r.out, fmt.Sprintf("inserted %d departments and %d employees", len(departments), len(employees)), r.noColor)
	return employees, nil
}

func (r *demoRun) update(ctx context.Context, scott entity.Entity) error {
	if err := demo.EmpSalary.Set(scott, demo.EmpSalary.Get(scott)*1.1); err != nil {
		return err
	}
	if _, err := r.ops.Update(ctx, scott); err != nil {
		return err
	}
	update := condition.UpdateWhere(condition.Column(demo.EmpJob).EqualTo("SALESMAN")).
		Set(demo.EmpCommission, 300.0).
		Build()
	updated, err := r.ops.UpdateWhere(ctx, update)
	if err != nil {
		return err
	}
	ui.WriteSuccess(r.out, fmt.Sprintf("raised the salary of SCOTT, set the commission of %d salesmen", updated), r.noColor)
	return nil
}

func (r *demoRun) selectEmployees(ctx context.Context) error {
	builder := condition.Where(condition.All(demo.EmpType))
	if r.cfg.Select.FetchDepth >= 0 {
		builder = builder.FetchDepth(r.cfg.Select.FetchDepth)
	}
	employees, err := r.ops.Select(ctx, builder.Build())
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out)
	ui.Header(r.out, "Employees", r.noColor)
	ui.EntityTable(r.out, r.entities.MustDefinition(demo.EmpType), employees, r.noColor)

	count, err := r.ops.Count(ctx, condition.Custom(demo.EmpSalaryAbove, []schema.Attribute{demo.EmpSalary}, []any{2000.0}))
	if err != nil {
		return err
	}
	jobs, err := r.ops.SelectValues(ctx, demo.EmpJob, condition.All(demo.EmpType))
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out)
	summary := ui.NewKeyValueTable(r.out, r.noColor)
	summary.AddRow("Salary above 2000", strconv.Itoa(count))
	summary.AddRow("Jobs", formatValues(jobs))
	summary.Render()
	return nil
}

func (r *demoRun) readThroughCache(ctx context.Context, key *entity.Key) error {
	loads := 0
	loader := func(ctx context.Context, key *entity.Key) (entity.Entity, error) {
		loads++
		return r.ops.SelectKey(ctx, key)
	}
	var cached entity.Entity
	for i := 0; i < 2; i++ {
		e, err := r.cache.GetOrLoad(ctx, key, loader)
		if err != nil {
			return err
		}
		cached = e
	}
	fmt.Fprintln(r.out)
	ui.WriteSuccess(r.out, fmt.Sprintf("read %s twice through the cache with %d database load", cached, loads), r.noColor)
	return nil
}

// rejectReadOnly attempts to insert into the read only audit log
func (r *demoRun) rejectReadOnly(ctx context.Context) {
	log := entity.New(r.entities.MustDefinition(demo.LogType))
	if err := demo.LogEntry.Set(log, "demo finished"); err != nil {
		return
	}
	_, err := r.ops.Insert(ctx, log)
	if errors.Is(err, crud.ErrReadOnly) {
		ui.WriteSuccess(r.out, "the audit log rejected an insert, it is read only", r.noColor)
	}
}

// writeStatementCounts writes the executed statement counts gathered by the
// query counter
func (r *demoRun) writeStatementCounts() error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	counts := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				counts[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	fmt.Fprintln(r.out)
	ui.Header(r.out, "Statements", r.noColor)
	table := ui.NewKeyValueTable(r.out, r.noColor)
	for _, kind := range kinds {
		table.AddRow(kind, strconv.FormatFloat(counts[kind], 'f', 0, 64))
	}
	table.Render()
	return nil
}
