// Package retention prunes old ledger events on a schedule
package retention

import (
	"strconv"
	"strings"
	"time"

	perr "captchahub/internal/platform/errors"
)

// Mode is a parsed retention policy
// a zero Keep means events are kept forever
type Mode struct {
	Keep time.Duration
}

// Full reports whether nothing is ever pruned
func (m Mode) Full() bool { return m.Keep <= 0 }

// String renders the mode in its config form
func (m Mode) String() string {
	if m.Full() {
		return "full"
	}
	if m.Keep%(24*time.Hour) == 0 {
		return "timebox:" + strconv.Itoa(int(m.Keep/(24*time.Hour))) + "d"
	}
	return "timebox:" + m.Keep.String()
}

// ParseMode accepts "full", "timebox:<N>d" or "timebox:<go duration>"
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "full" {
		return Mode{}, nil
	}
	rest, ok := strings.CutPrefix(s, "timebox:")
	if !ok {
		return Mode{}, perr.InvalidArgf("unknown retention mode %q", s)
	}

	var keep time.Duration
	if days, ok := strings.CutSuffix(rest, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return Mode{}, perr.InvalidArgf("bad retention days %q", rest)
		}
		keep = time.Duration(n) * 24 * time.Hour
	} else {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return Mode{}, perr.InvalidArgf("bad retention duration %q", rest)
		}
		keep = d
	}
	if keep <= 0 {
		return Mode{}, perr.InvalidArgf("retention must be positive, got %q", rest)
	}
	return Mode{Keep: keep}, nil
}
