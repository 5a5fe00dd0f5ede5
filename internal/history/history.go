// Package history stores finished conversation turns per user and course.
// The proxy core only produces the assembled bot response and metadata; the
// HTTP handlers are the callers that persist them here.
package history

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("history record not found")

// Record is one conversation turn, tagged with its syllabus classification.
type Record struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userid"`
	CourseID       string    `json:"courseid"`
	UserText       string    `json:"usertext"`
	BotResponse    string    `json:"botresponse"`
	Metadata       string    `json:"metadata,omitempty"`
	FunctionCalled string    `json:"functioncalled"`
	Subject        string    `json:"subject,omitempty"`
	Topic          string    `json:"topic,omitempty"`
	Lesson         string    `json:"lesson,omitempty"`
	TimeCreated    time.Time `json:"timecreated"`
}

// Filter selects records for listing. Lesson filtering is skipped when
// General is set (the "unfiltered" history view). Page is 1-based.
type Filter struct {
	CourseID string
	Subject  string
	Topic    string
	Lesson   string
	General  bool
	Page     int
	PerPage  int
}

// Store is the persistence boundary. The backing engine is deliberately out
// of this package's concern; MemoryStore is the bundled implementation.
type Store interface {
	Add(ctx context.Context, record *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]Record, int, error)
}
