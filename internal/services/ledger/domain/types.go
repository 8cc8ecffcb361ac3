// Package domain holds the ledger record and its ports
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"captchahub/internal/core/captcha"
)

// Record is one persisted lifecycle event
type Record struct {
	ID         uuid.UUID
	Kind       string
	TaskID     string
	ResultType string
	Handler    string
	Detail     string
	At         time.Time
}

// FromEvent maps a registry event onto a fresh record
func FromEvent(e captcha.Event) Record {
	return Record{
		ID:         uuid.New(),
		Kind:       string(e.Kind),
		TaskID:     e.TaskID,
		ResultType: string(e.ResultType),
		Handler:    e.Handler,
		Detail:     e.Detail,
		At:         e.At.UTC(),
	}
}

// RecorderPort receives registry events
type RecorderPort interface {
	captcha.Observer
}

// WorkerPort flushes buffered records until ctx ends
type WorkerPort interface {
	Run(ctx context.Context) error
}

// Sink persists a batch of records
type Sink interface {
	Write(ctx context.Context, xs []Record) error
}
