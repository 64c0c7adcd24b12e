package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"terminus/internal/util"
)

const defaultLimit = 25

// Query filters and pages List results. Empty filters match everything.
type Query struct {
	Project   string
	Operation string
	Outcome   string
	Limit     int
	Offset    int
}

// List returns matching events, newest first.
func (l *Log) List(q Query) ([]Event, error) {
	util.Log.Debugf("Reading plugin history from: %s", l.path)

	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			util.Log.Debugf("History log '%s' not found, returning empty history.", l.path)
			return []Event{}, nil
		}
		return nil, fmt.Errorf("failed to open history log '%s': %w", l.path, err)
	}
	defer file.Close()

	var allEvents []Event
	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			util.Log.Warnf("Failed to parse history line %d in '%s': %v. Skipping line.", lineNumber, l.path, err)
			continue
		}
		allEvents = append(allEvents, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading history log '%s': %w", l.path, err)
	}

	sort.SliceStable(allEvents, func(i, j int) bool {
		return allEvents[i].Timestamp.After(allEvents[j].Timestamp)
	})

	filtered := make([]Event, 0, len(allEvents))
	for _, event := range allEvents {
		if q.Project != "" && !strings.EqualFold(event.Project, q.Project) {
			continue
		}
		if q.Operation != "" && !strings.EqualFold(event.Operation, q.Operation) {
			continue
		}
		if q.Outcome != "" && !strings.EqualFold(event.Outcome, q.Outcome) {
			continue
		}
		filtered = append(filtered, event)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start >= len(filtered) {
		return []Event{}, nil
	}
	end := start + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], nil
}
