// Package memory provides the durable, topic-keyed fact store backing the
// remember / recall / forget tools.
package memory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Wildcard is the recall query that matches every stored entry.
const Wildcard = "*"

var (
	// ErrInvalidInput reports an empty or malformed topic or query.
	// Surfaced immediately to the caller, never retried.
	ErrInvalidInput = errors.New("memory: invalid input")

	// ErrStorageUnavailable reports that the database could not be opened,
	// read or written. The host keeps running without memory when it sees
	// this; it is a failure result, not a fatal condition.
	ErrStorageUnavailable = errors.New("memory: storage unavailable")
)

// Action reports the effect of a Remember call.
type Action string

const (
	ActionStored  Action = "stored"  // a new topic was created
	ActionUpdated Action = "updated" // an existing topic was overwritten
)

// Entry is one remembered fact. Topic is the unique key; a second
// Remember on the same topic replaces Content and refreshes UpdatedAt.
type Entry struct {
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Default and boundary values for Config.
const (
	DefaultMaxEntries  = 200
	MinMaxEntries      = 10
	MaxMaxEntries      = 1000
	DefaultBusyTimeout = 5 * time.Second
)

// Config holds the store settings.
type Config struct {
	// Path is the SQLite database file location.
	Path string

	// MaxEntries caps the table size. When an insert pushes the count past
	// the cap, the oldest entries by update time are pruned. Zero means
	// DefaultMaxEntries; other values are clamped to
	// [MinMaxEntries, MaxMaxEntries].
	MaxEntries int

	// BusyTimeout bounds how long an operation waits on a locked database
	// before failing with ErrStorageUnavailable.
	BusyTimeout time.Duration
}

// DefaultConfig returns the default store configuration for a database at
// the given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		MaxEntries:  DefaultMaxEntries,
		BusyTimeout: DefaultBusyTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxEntries == 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.MaxEntries < MinMaxEntries {
		c.MaxEntries = MinMaxEntries
	}
	if c.MaxEntries > MaxMaxEntries {
		c.MaxEntries = MaxMaxEntries
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = DefaultBusyTimeout
	}
	return c
}

// cleanTopic trims the topic and rejects empty ones.
func cleanTopic(topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	return topic, nil
}

// cleanQuery trims the query and rejects empty ones. The wildcard is a
// valid query.
func cleanQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	return query, nil
}
