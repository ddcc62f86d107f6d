package op

import (
	"context"

	"github.com/yuanshang000/ds2api/internal/db"
	"github.com/yuanshang000/ds2api/internal/model"
	"github.com/yuanshang000/ds2api/internal/utils/log"
)

// RequestLogSave writes one audit row. Logging failures never fail requests;
// without an initialized database the row is dropped.
func RequestLogSave(ctx context.Context, row *model.RequestLog) {
	gdb := db.GetDB()
	if gdb == nil {
		return
	}
	if err := gdb.WithContext(ctx).Create(row).Error; err != nil {
		log.Warnf("failed to save request log: %v", err)
	}
}

// RequestLogList returns the most recent rows, newest first.
func RequestLogList(ctx context.Context, limit int) ([]model.RequestLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []model.RequestLog
	err := db.GetDB().WithContext(ctx).Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}
