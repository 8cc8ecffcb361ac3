// Package modkit provides module wiring and core deps
package modkit

import (
	"captchahub/internal/modkit/repokit"
	"captchahub/internal/platform/config"
	"captchahub/internal/platform/logger"
	"captchahub/internal/platform/store"
)

// Deps holds core dependencies passed to modules, PG and CH are nil when not configured
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
}
