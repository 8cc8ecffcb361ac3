package service

import (
	"sync"
	"time"

	"captchahub/internal/core/captcha"
	"captchahub/internal/platform/metrics"
)

// MetricsObserver feeds lifecycle events into the prometheus collector
type MetricsObserver struct {
	c *metrics.Collector

	mu         sync.Mutex
	registered map[string]time.Time
}

// NewMetricsObserver returns an observer bound to c
func NewMetricsObserver(c *metrics.Collector) *MetricsObserver {
	return &MetricsObserver{c: c, registered: map[string]time.Time{}}
}

// Observe implements captcha.Observer
func (o *MetricsObserver) Observe(e captcha.Event) {
	o.c.Event(string(e.Kind), string(e.ResultType))

	switch e.Kind {
	case captcha.EventHandlerFailed:
		o.c.HandlerFailed(e.Handler)
	case captcha.EventRegistered:
		o.mu.Lock()
		o.registered[e.TaskID] = e.At
		o.mu.Unlock()
		o.c.AddRegistered(1)
	case captcha.EventResult:
		o.mu.Lock()
		at, ok := o.registered[e.TaskID]
		o.mu.Unlock()
		if ok {
			o.c.Solved(string(e.ResultType), e.At.Sub(at))
		}
	case captcha.EventRemoved:
		o.mu.Lock()
		delete(o.registered, e.TaskID)
		o.mu.Unlock()
		o.c.AddRegistered(-1)
	}
}
