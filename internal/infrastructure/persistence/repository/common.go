package repository

import (
	"database/sql"
	"time"

	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

func nullableInt64(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) interface{} {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func nullableString(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// insertError maps constraint failures on insert to apperr kinds.
func insertError(logger *zap.Logger, err error, conflictMsg string, fields ...zap.Field) error {
	switch {
	case sqlite.IsUniqueViolation(err):
		return apperr.Conflict("%s", conflictMsg)
	case sqlite.IsForeignKeyViolation(err):
		return apperr.Validation("referenced record does not exist")
	}
	logger.Error("Insert failed", append(fields, zap.Error(err))...)
	return err
}
