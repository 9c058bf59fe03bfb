// Package tasks has the background task records the console observes:
// scheduled outgoing email and event hook deliveries, with retry state.
package tasks

import (
	"net/url"
	"strconv"
)

// Status of a background task.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusRunning   Status = "Running"
	StatusSuccess   Status = "Success"
	StatusFailed    Status = "Failed"
	StatusRemoved   Status = "Removed"
	StatusStopped   Status = "Stopped"
)

// Statuses returns all task statuses, in display order.
func Statuses() []Status {
	return []Status{StatusScheduled, StatusRunning, StatusSuccess, StatusFailed, StatusRemoved, StatusStopped}
}

// Finished returns whether the task will not run again.
func (s Status) Finished() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusRemoved || s == StatusStopped
}

// EmailTask is a scheduled outgoing message submission.
type EmailTask struct {
	ID            int64  `json:"id"`
	AccountID     int64  `json:"account_id"`
	Status        Status `json:"status"`
	Subject       string `json:"subject,omitempty"`
	RetryCount    uint32 `json:"retry_count"`
	LastError     string `json:"last_error,omitempty"`
	StoppedReason string `json:"stopped_reason,omitempty"`
	ScheduledAt   int64  `json:"scheduled_at"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// EventHookTask is a scheduled event hook (webhook) delivery.
type EventHookTask struct {
	ID            int64  `json:"id"`
	AccountID     int64  `json:"account_id"`
	Status        Status `json:"status"`
	Event         string `json:"event,omitempty"`
	URL           string `json:"url,omitempty"`
	RetryCount    uint32 `json:"retry_count"`
	LastError     string `json:"last_error,omitempty"`
	StoppedReason string `json:"stopped_reason,omitempty"`
	ScheduledAt   int64  `json:"scheduled_at"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// Page is a list page as the console tracks it, 0-based. The wire is 1-based,
// converted at the request boundary. Lists are always newest first.
type Page struct {
	Index  int // 0-based.
	Size   int
	Status *Status // Optional filter.
}

// Values returns the query string parameters for a task list request.
func (p Page) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Index+1))
	v.Set("page_size", strconv.Itoa(p.Size))
	v.Set("desc", "true")
	if p.Status != nil {
		v.Set("status", string(*p.Status))
	}
	return v
}

// List is a page of tasks with the total count, for paging controls.
type List[T any] struct {
	Items      []T    `json:"items"`
	Page       int    `json:"page"` // 1-based on the wire.
	PageSize   int    `json:"page_size"`
	TotalItems uint64 `json:"total_items"`
}
