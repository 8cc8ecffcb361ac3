package module

import (
	"time"

	"captchahub/internal/platform/config"
)

// Options controls the ledger recorder
type Options struct {
	Enabled       bool
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
	CHTable       string
	AutoMigrate   bool

	// LockTimeout bounds row lock waits in ledger transactions, 0 leaves the server default
	LockTimeout time.Duration

	// Retention is "full" or "timebox:<N>d", applied to postgres only
	Retention         string
	RetentionInterval time.Duration
	PruneBatch        int
}

// FromConfig reads LEDGER_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("LEDGER_")
	return Options{
		Enabled:       c.MayBool("ENABLED", true),
		Buffer:        c.MayInt("BUFFER", 4096),
		BatchSize:     c.MayInt("BATCH_SIZE", 256),
		FlushInterval: c.MayDuration("FLUSH_INTERVAL", 2*time.Second),
		CHTable:       c.MayString("CH_TABLE", "captcha_events"),
		AutoMigrate:   c.MayBool("AUTO_MIGRATE", true),
		LockTimeout:   c.MayDuration("LOCK_TIMEOUT", 2*time.Second),

		Retention:         c.MayString("RETENTION", "full"),
		RetentionInterval: c.MayDuration("RETENTION_INTERVAL", time.Hour),
		PruneBatch:        c.MayInt("PRUNE_BATCH", 5000),
	}
}
