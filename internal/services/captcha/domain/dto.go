// Package domain holds DTOs and ports for the captcha registry service
package domain

import (
	"captchahub/internal/core/captcha"
	"captchahub/internal/services/captcha/presence"
)

// TaskView is the transport shape of a task
type TaskView = captcha.View

// NextInput asks for the oldest task waiting for a solver
type NextInput struct {
	ClientID  string `json:"client_id,omitempty" validate:"omitempty,max=64,printascii" example:"operator-1"`
	Exclusive bool   `json:"exclusive" example:"false"`
}

// NextOutput carries the claimed task when one was waiting
type NextOutput struct {
	Found bool      `json:"found" example:"true"`
	Task  *TaskView `json:"task,omitempty"`
}

// TaskRef addresses one task by id
type TaskRef struct {
	ID       string `json:"id"                  validate:"required,task_id" example:"42"`
	ClientID string `json:"client_id,omitempty" validate:"omitempty,max=64,printascii" example:"operator-1"`
	// Solver marks callers allowed to answer, only they count as connected
	Solver bool `json:"-"`
}

// ResultInput answers a task
type ResultInput struct {
	ID       string `json:"id"                  validate:"required,task_id" example:"42"`
	Result   string `json:"result"              validate:"required,max=65536" example:"x7kq"`
	ClientID string `json:"client_id,omitempty" validate:"omitempty,max=64,printascii" example:"operator-1"`
}

// InteractInput performs one step on an interactive task
// element is a tile class or the verify button id, index selects among tiles
type InteractInput struct {
	ID       string `json:"id"                  validate:"required,task_id" example:"42"`
	Element  string `json:"element"             validate:"required,max=64,printascii" example:"rc-image-tile-wrapper"`
	Index    int    `json:"index"               validate:"min=0,max=1000" example:"3"`
	ClientID string `json:"client_id,omitempty" validate:"omitempty,max=64,printascii" example:"operator-1"`
}

// StepOutput reports an interactive step
type StepOutput struct {
	Done bool     `json:"done" example:"false"`
	Task TaskView `json:"task"`
}

// StartOutput reports the first interactive step
type StartOutput struct {
	Started   bool     `json:"started" example:"true"`
	Completed bool     `json:"completed" example:"false"`
	Task      TaskView `json:"task"`
}

// VerdictInput reports whether the target site accepted the answer
type VerdictInput struct {
	ID      string `json:"id"      validate:"required,task_id" example:"42"`
	Correct *bool  `json:"correct" validate:"required" example:"true"`
}

// SubmitInput registers a challenge on behalf of a remote worker
type SubmitInput struct {
	Source     string `json:"source"                validate:"required_without=Data,max=4096" example:"https://example.test/login"`
	Format     string `json:"format,omitempty"      validate:"omitempty,max=32,alphanum" example:"png"`
	ResultType string `json:"result_type,omitempty" validate:"omitempty,result_type" example:"textual"`
	Data       string `json:"data,omitempty"        validate:"omitempty,base64" example:"iVBORw0KGgo="`
}

// SubmitOutput reports whether any solver accepted the task
type SubmitOutput struct {
	Accepted bool     `json:"accepted" example:"true"`
	Task     TaskView `json:"task"`
}

// ListOutput is the registry snapshot plus the connected clients
type ListOutput struct {
	Tasks     []TaskView        `json:"tasks"`
	Clients   []presence.Client `json:"clients"`
	Connected bool              `json:"connected" example:"true"`
}
