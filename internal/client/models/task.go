package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
)

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultPriority is assigned when a task is created without one.
const DefaultPriority = PriorityMedium

// DateLayout is the short form accepted for due dates.
const DateLayout = "2006-01-02"

// ParsePriority accepts low, medium or high in any case. An empty string
// yields DefaultPriority.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultPriority, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", common.NewFieldError("priority", fmt.Sprintf("unknown priority %q", s))
	}
}

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ValidateDueDate accepts an empty string, a YYYY-MM-DD date or an RFC 3339 timestamp.
func ValidateDueDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, s); err == nil {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return nil
	}
	return common.NewFieldError("dueDate", fmt.Sprintf("invalid date %q", s))
}

// Task is a single to-do item. The field names of the JSON encoding are
// the on-device storage format.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    Priority  `json:"priority"`
	DueDate     string    `json:"dueDate,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskInput carries the fields a caller may set when creating a task.
type TaskInput struct {
	Title       string
	Description string
	Priority    Priority
	DueDate     string
}

// Validate trims the title and fills in the default priority.
func (in *TaskInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return common.NewFieldError("title", "must not be blank")
	}
	if in.Priority == "" {
		in.Priority = DefaultPriority
	}
	if !in.Priority.Valid() {
		return common.NewFieldError("priority", fmt.Sprintf("unknown priority %q", in.Priority))
	}
	return ValidateDueDate(in.DueDate)
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	DueDate     *string
	Completed   *bool
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.DueDate == nil && p.Completed == nil
}

// Apply validates the patch and merges it into t. t is left unchanged on error.
func (p TaskPatch) Apply(t *Task) error {
	next := *t
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return common.NewFieldError("title", "must not be blank")
		}
		next.Title = title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return common.NewFieldError("priority", fmt.Sprintf("unknown priority %q", *p.Priority))
		}
		next.Priority = *p.Priority
	}
	if p.DueDate != nil {
		if err := ValidateDueDate(*p.DueDate); err != nil {
			return err
		}
		next.DueDate = *p.DueDate
	}
	if p.Completed != nil {
		next.Completed = *p.Completed
	}
	*t = next
	return nil
}

// Stats counts tasks by completion.
type Stats struct {
	Total     int
	Pending   int
	Completed int
}

func filter(tasks []Task, completed bool) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Completed == completed {
			out = append(out, t)
		}
	}
	return out
}

// Pending returns the tasks not yet completed, in collection order.
func Pending(tasks []Task) []Task { return filter(tasks, false) }

// Completed returns the completed tasks, in collection order.
func Completed(tasks []Task) []Task { return filter(tasks, true) }

func Summarize(tasks []Task) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		} else {
			s.Pending++
		}
	}
	return s
}
