package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// коды Postgres "объект уже существует"
var alreadyExistsCodes = map[string]struct{}{
	"42P07": {}, // duplicate_table
	"42701": {}, // duplicate_column
	"42710": {}, // duplicate_object
}

// Execer — минимум от *sql.DB, нужный для DDL.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Failure — действие, которое не удалось применить.
type Failure struct {
	Action Action
	SQL    string
	Err    error
}

// Report — итог применения набора действий.
type Report struct {
	Applied []Action
	Skipped []Action // уже существовало
	Failed  []Failure
}

// Merge adds another report's results to r.
func (r *Report) Merge(other Report) {
	r.Applied = append(r.Applied, other.Applied...)
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.Failed = append(r.Failed, other.Failed...)
}

// Applier исполняет действия против базы.
type Applier struct {
	db     Execer
	quoter Quoter
	logger *zap.Logger
}

func NewApplier(db Execer, quoter Quoter, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if quoter == nil {
		quoter = PostgresQuoter{}
	}
	return &Applier{db: db, quoter: quoter, logger: logger}
}

func isAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := alreadyExistsCodes[pgErr.Code]
		return ok
	}
	return false
}

// Apply renders and executes one action. Ошибку рендеринга и исполнения возвращает как есть.
func (a *Applier) Apply(ctx context.Context, action Action) (string, error) {
	sqlText, err := action.SQL(a.quoter)
	if err != nil {
		return "", err
	}
	a.logger.Debug("Executing DDL", zap.String("action", action.String()), zap.String("ddl", sqlText))
	if _, err := a.db.ExecContext(ctx, sqlText); err != nil {
		return sqlText, err
	}
	return sqlText, nil
}

// ApplyStrict — fail-fast: первая ошибка обрывает оставшиеся действия и возвращается.
// "already exists" считается успехом.
func (a *Applier) ApplyStrict(ctx context.Context, actions []Action) (Report, error) {
	var rep Report
	for _, action := range actions {
		sqlText, err := a.Apply(ctx, action)
		if err != nil {
			if isAlreadyExists(err) {
				a.logger.Info("DDL skipped (already exists)", zap.String("action", action.String()))
				rep.Skipped = append(rep.Skipped, action)
				continue
			}
			rep.Failed = append(rep.Failed, Failure{Action: action, SQL: sqlText, Err: err})
			return rep, fmt.Errorf("DDL apply failed (%s): %w", action, err)
		}
		rep.Applied = append(rep.Applied, action)
	}
	return rep, nil
}

// ApplyBestEffort исполняет каждое действие независимо: ошибка логируется вместе с DDL, цикл идёт дальше.
func (a *Applier) ApplyBestEffort(ctx context.Context, actions []Action) Report {
	var rep Report
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			rep.Failed = append(rep.Failed, Failure{Action: action, Err: err})
			continue
		}
		sqlText, err := a.Apply(ctx, action)
		if err != nil {
			if isAlreadyExists(err) {
				rep.Skipped = append(rep.Skipped, action)
				continue
			}
			a.logger.Warn("DDL failed, continuing",
				zap.String("action", action.String()),
				zap.String("ddl", sqlText),
				zap.Error(err))
			rep.Failed = append(rep.Failed, Failure{Action: action, SQL: sqlText, Err: err})
			continue
		}
		rep.Applied = append(rep.Applied, action)
	}
	return rep
}
