package repo

import (
	"context"

	"captchahub/internal/platform/store"
	"captchahub/internal/services/ledger/domain"
)

// CHSchema is the columnar copy of the ledger, provisioned out of band
const CHSchema = `
CREATE TABLE IF NOT EXISTS captcha_events (
	id          UUID,
	kind        LowCardinality(String),
	task_id     String,
	result_type LowCardinality(String),
	handler     LowCardinality(String),
	detail      String,
	at          DateTime64(3, 'UTC')
) ENGINE = MergeTree ORDER BY (at, kind)
`

// CHSink appends records to a clickhouse table
type CHSink struct {
	ch    store.Clickhouse
	table string
}

// NewCHSink returns a sink writing into table
func NewCHSink(ch store.Clickhouse, table string) *CHSink {
	if table == "" {
		table = "captcha_events"
	}
	return &CHSink{ch: ch, table: table}
}

// Write implements domain.Sink
func (s *CHSink) Write(ctx context.Context, xs []domain.Record) error {
	if len(xs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(xs))
	for _, r := range xs {
		rows = append(rows, []any{r.ID, r.Kind, r.TaskID, r.ResultType, r.Handler, r.Detail, r.At})
	}
	return s.ch.Insert(ctx, s.table, rows)
}
