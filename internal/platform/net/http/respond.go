// Package http writes the JSON envelope and adapts return-style handlers to net/http
package http

import (
	"encoding/json"
	stdhttp "net/http"

	pnet "captchahub/internal/platform/net"
)

// Envelope is the body every endpoint answers with
type Envelope = pnet.Envelope

// Response is what a return-style handler produces, an error Body renders as the error envelope
type Response struct {
	Status int
	Body   any
	Header stdhttp.Header
}

// OK is a 200 carrying data
func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// Error is a response whose status comes from err's code
func Error(err error) Response { return Response{Body: err} }

// JSON encodes v with status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Handle turns h into a net/http handler
func Handle(h func(r *stdhttp.Request) Response) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		resp := h(r)
		for k, vv := range resp.Header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}
		if resp.Status == stdhttp.StatusNoContent {
			w.WriteHeader(resp.Status)
			return
		}
		status, env := resp.envelope(pnet.RequestID(r.Context()))
		JSON(w, status, env)
	}
}

func (resp Response) envelope(reqID string) (int, Envelope) {
	if err, ok := resp.Body.(error); ok && err != nil {
		return pnet.Error(err, reqID)
	}
	status := max(resp.Status, stdhttp.StatusOK)
	return status, pnet.Success(status, resp.Body, reqID)
}
