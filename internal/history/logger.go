// Package history keeps an append-only record of plugin operations in the cache directory.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"terminus/internal/plugin"
	"terminus/internal/util"
)

// FileName is the history log inside the cache directory.
const FileName = "plugin-history.jsonl"

// Operations recorded in the log.
const (
	OperationInstall   = "install"
	OperationUninstall = "uninstall"
)

// Event is one processed project of an install or uninstall batch.
type Event struct {
	Timestamp time.Time `json:"timestamp"           yaml:"timestamp"`
	Operation string    `json:"operation"           yaml:"operation"`
	Project   string    `json:"project"             yaml:"project"`
	Outcome   string    `json:"outcome"             yaml:"outcome"`
	Trail     []string  `json:"trail"               yaml:"trail"`
	Error     string    `json:"error,omitempty"     yaml:"error,omitempty"`
}

// Log appends events to a JSON lines file.
type Log struct {
	path string
	mu   sync.Mutex
}

func NewLog(cacheDir string) *Log {
	return &Log{path: filepath.Join(cacheDir, FileName)}
}

func (l *Log) Path() string {
	return l.path
}

// EventFromOutcome converts a batch outcome into a history event.
func EventFromOutcome(operation string, o *plugin.Outcome) *Event {
	ev := &Event{
		Timestamp: time.Now().UTC(),
		Operation: operation,
		Project:   o.Project,
		Outcome:   string(o.State),
	}
	for _, s := range o.Trail {
		ev.Trail = append(ev.Trail, string(s))
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	return ev
}

// Record appends event to the log.
func (l *Log) Record(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for history log '%s': %w", l.path, err)
	}
	entry, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event for '%s': %w", event.Operation, event.Project, err)
	}

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history log '%s' for appending: %w", l.path, err)
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			util.Log.Errorf("Failed to close history log '%s': %v", l.path, err)
		}
	}(file)

	if _, err := file.Write(append(entry, '\n')); err != nil {
		return fmt.Errorf("failed to write %s event to '%s': %w", event.Operation, l.path, err)
	}
	util.Log.Debugf("Logged %s event to %s: Project=%s Outcome=%s", event.Operation, l.path, event.Project, event.Outcome)
	return nil
}

// RecordOutcomes appends one event per outcome. Write failures are logged, never returned.
func (l *Log) RecordOutcomes(operation string, outcomes []*plugin.Outcome) {
	for _, o := range outcomes {
		if err := l.Record(EventFromOutcome(operation, o)); err != nil {
			util.Log.Warnf("Could not record %s of %s: %v", operation, o.Project, err)
		}
	}
}
