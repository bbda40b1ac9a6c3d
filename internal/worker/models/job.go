// Package models defines the worker's queue and database models.
package models

import (
	"fmt"
	"strings"
)

// JobState is the queue-level lifecycle state of a job.
type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Action selects what the dispatcher does with a job.
type Action string

const (
	ActionExchangeToken Action = "exchange-token"
	ActionLoginPassword Action = "login-password"
	ActionAuthenticate  Action = "authenticate"
	ActionSync          Action = "sync"
)

// Job is the canonical, decoded form of a queue entry.
type Job struct {
	ID      string
	Action  Action
	Payload map[string]any
	State   JobState
}

// String returns payload[key] as a trimmed string. Non-string values are
// formatted; missing, nil and blank values report false.
func (j *Job) String(key string) (string, bool) {
	if j == nil || j.Payload == nil {
		return "", false
	}
	v, ok := j.Payload[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch value := v.(type) {
	case string:
		s = value
	default:
		s = fmt.Sprint(value)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// UserID is a shortcut for the "userId" payload field.
func (j *Job) UserID() string {
	id, _ := j.String("userId")
	return id
}
