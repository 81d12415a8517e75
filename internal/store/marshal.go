package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/regress/internal/report"
)

// timeLayout is the storage format of started_at.
const timeLayout = time.RFC3339Nano

// marshalFailing stores the failing test names as canonical JSON.
func marshalFailing(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := report.Canonical(names)
	if err != nil {
		return "", fmt.Errorf("marshal failing: %w", err)
	}
	return string(data), nil
}

// unmarshalFailing decodes a failing column. Returns an empty slice, never nil.
func unmarshalFailing(s string) ([]string, error) {
	names := []string{}
	if s == "" {
		return names, nil
	}
	if err := json.Unmarshal([]byte(s), &names); err != nil {
		return nil, fmt.Errorf("unmarshal failing: %w", err)
	}
	return names, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse started_at: %w", err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
