// Package net carries request scoped identity on the context and shapes the response envelope
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey uint8

const (
	roleKey ctxKey = iota
	clientKey
)

func with(ctx context.Context, k any, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

func str(ctx context.Context, k any) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// WithRequest stores the request id where chi's middleware looks for it, and the caller role
func WithRequest(ctx context.Context, reqID, role string) context.Context {
	return with(with(ctx, chimw.RequestIDKey, reqID), roleKey, role)
}

// WithUser stores the authenticated client id
func WithUser(ctx context.Context, clientID string) context.Context {
	return with(ctx, clientKey, clientID)
}

// RequestID returns the request id, empty outside a request
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// Role returns the role granted to the bearer token, empty without auth
func Role(ctx context.Context) string { return str(ctx, roleKey) }

// UserID returns the authenticated client id, empty without auth
func UserID(ctx context.Context) string { return str(ctx, clientKey) }
