package meta

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"rapidmeta/internal/pg"
)

// SyncReport — итог одного прохода реконсиляции.
type SyncReport struct {
	PassID         string
	StartedAt      time.Time
	Duration       time.Duration
	Plan           Plan
	Tables         pg.Report
	Columns        pg.Report
	ColumnsSkipped bool // фаза A упала, фаза B не выполнялась
}

// Reconciler выполняет проход: снимок → план → таблицы (fail-fast) → колонки (best effort).
// Снимок снимается один раз на проход и не обновляется между фазами.
type Reconciler struct {
	introspector pg.Introspector
	planner      *Planner
	applier      *pg.Applier
	logger       *zap.Logger
}

func NewReconciler(introspector pg.Introspector, planner *Planner, applier *pg.Applier, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{introspector: introspector, planner: planner, applier: applier, logger: logger}
}

// Plan — сухой прогон: снимок и план без применения.
func (r *Reconciler) Plan(ctx context.Context) (Plan, error) {
	snap, err := r.introspector.Snapshot(ctx)
	if err != nil {
		return Plan{}, err
	}
	return r.planner.Plan(snap), nil
}

// Sync runs one full reconciliation pass.
// Ошибка интроспекции фатальна для прохода; ошибка создания таблицы отменяет фазу B.
func (r *Reconciler) Sync(ctx context.Context) (*SyncReport, error) {
	rep := &SyncReport{PassID: ulid.Make().String(), StartedAt: time.Now().UTC()}
	logger := r.logger.With(zap.String("pass", rep.PassID))
	defer func() { rep.Duration = time.Since(rep.StartedAt) }()

	logger.Info("Synchronizing database schema...")
	snap, err := r.introspector.Snapshot(ctx)
	if err != nil {
		logger.Error("Schema introspection failed", zap.Error(err))
		return rep, err
	}
	logger.Debug("Catalog snapshot taken",
		zap.Int("tables", snap.TableCount()),
		zap.Int("columns", snap.ColumnCount()))

	rep.Plan = r.planner.Plan(snap)
	logger.Info("Schema plan ready",
		zap.Int("tables", len(rep.Plan.Tables)),
		zap.Int("columns", len(rep.Plan.Columns)),
		zap.Int("warnings", len(rep.Plan.Warnings)))

	rep.Tables, err = r.applier.ApplyStrict(ctx, rep.Plan.Tables)
	if err != nil {
		rep.ColumnsSkipped = true
		logger.Error("Table creation failed, column changes skipped for this pass", zap.Error(err))
		return rep, fmt.Errorf("create tables: %w", err)
	}

	rep.Columns = r.applier.ApplyBestEffort(ctx, rep.Plan.Columns)
	logger.Info("Database schema synchronized",
		zap.Int("applied", len(rep.Tables.Applied)+len(rep.Columns.Applied)),
		zap.Int("failed", len(rep.Columns.Failed)))
	return rep, nil
}
