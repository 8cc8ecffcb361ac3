// Package captcha holds the captcha task registry, the result and deadline protocol,
// and the step-driven interactive checkbox solver
package captcha

import "strings"

// ResultType decides how a solver answer is parsed and whether a browser session may exist
type ResultType string

const (
	// ResultTextual is a challenge answered with the text shown on it
	ResultTextual ResultType = "textual"

	// ResultPositional is a challenge answered with a click position "x,y"
	ResultPositional ResultType = "positional"

	// ResultInteractive is a challenge resolved through a driven browser session
	ResultInteractive ResultType = "interactive"
)

// Valid reports whether r is one of the known result types
func (r ResultType) Valid() bool {
	switch r {
	case ResultTextual, ResultPositional, ResultInteractive:
		return true
	}
	return false
}

// ParseResultType maps a wire value onto a ResultType, "" means textual
func ParseResultType(s string) (ResultType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ResultTextual, true
	}
	rt := ResultType(s)
	return rt, rt.Valid()
}

// Status is the dispatch status of a task
// there is no terminal value, resolution is read from result, failure and deadline
type Status string

const (
	// StatusInit is the status of a freshly created task
	StatusInit Status = "init"

	// StatusWaiting means the task is waiting for any solver
	StatusWaiting Status = "waiting"

	// StatusUser means one human operator took the task exclusively
	StatusUser Status = "user"

	// StatusSharedUser means a human operator took the task but others may still see it
	StatusSharedUser Status = "shared-user"
)

// Point is a positional answer
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Challenge references the challenge resource a task carries
type Challenge struct {
	Source string // URL or identifier
	Format string // e.g. "png", "jpg", "recaptcha"
	File   string // optional local copy
	Data   []byte // optional inline bytes
}
