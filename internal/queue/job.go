// Package queue implements the Task Queue (TQ) contract on top of
// RabbitMQ: waiting/delayed/active/completed/failed job states, retries
// with exponential backoff, and a dead-letter exchange for exhausted jobs.
package queue

import (
	"encoding/json"
	"time"
)

// JobState mirrors the TQ contract's job lifecycle (spec §4.9).
type JobState string

const (
	JobWaiting   JobState = "WAITING"
	JobDelayed   JobState = "DELAYED"
	JobActive    JobState = "ACTIVE"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
)

// Job is one unit of work enqueued onto a named queue.
type Job struct {
	ID        string          `json:"id"`
	Queue     string          `json:"queue"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
}

func Marshal(j Job) ([]byte, error) {
	return json.Marshal(j)
}

func Unmarshal(raw []byte) (Job, error) {
	var j Job
	err := json.Unmarshal(raw, &j)
	return j, err
}

// Backoff computes the retry delay for a given attempt number (1-based),
// doubling from base and capped at max — the same shape as the delay
// formula used for webhook retries (spec §4.10).
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if d > max || d <= 0 {
		return max
	}
	return d
}
