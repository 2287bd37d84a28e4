// Package models provides data models for the GateKeeper dashboard.
package models

import (
	"bytes"
	"encoding/json"
)

// Action is the outcome GateKeeper recorded for a governed request.
type Action string

const (
	// ActionAllowed indicates the request passed policy checks.
	ActionAllowed Action = "ALLOWED"
	// ActionBlocked indicates the request was stopped by policy.
	ActionBlocked Action = "BLOCKED"
)

// Mode is the enforcement posture GateKeeper was running in. It is shown
// for context only.
type Mode string

const (
	ModeEnforce Mode = "ENFORCE"
	ModeMonitor Mode = "MONITOR"
)

// AnonymousUser is displayed when an entry carries no user.
const AnonymousUser = "Anonymous"

// LogEntry represents a single governance decision reported by GateKeeper.
type LogEntry struct {
	Timestamp string  `json:"timestamp"`
	Team      string  `json:"team"`
	User      string  `json:"user"`
	Action    Action  `json:"action"`
	Reason    string  `json:"reason"`
	Mode      Mode    `json:"mode"`
	Cost      float64 `json:"cost"`
}

// IsBlocked reports whether the entry was blocked.
func (e LogEntry) IsBlocked() bool {
	return e.Action == ActionBlocked
}

// IsAllowed reports whether the entry was allowed.
func (e LogEntry) IsAllowed() bool {
	return e.Action == ActionAllowed
}

// DisplayUser returns the user or the anonymous placeholder.
func (e LogEntry) DisplayUser() string {
	if e.User == "" {
		return AnonymousUser
	}
	return e.User
}

// UnmarshalJSON decodes an entry leniently. The feed is produced by an
// external service, so a missing or mistyped field falls back to its zero
// value instead of failing the whole batch. Elements that are not objects
// decode to an empty entry.
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		*e = LogEntry{}
		return nil
	}

	*e = LogEntry{
		Timestamp: looseString(fields["timestamp"]),
		Team:      looseString(fields["team"]),
		User:      looseString(fields["user"]),
		Action:    Action(looseString(fields["action"])),
		Reason:    looseString(fields["reason"]),
		Mode:      Mode(looseString(fields["mode"])),
		Cost:      looseNumber(fields["cost"]),
	}
	return nil
}

// looseString returns a JSON string's value, or the raw text of any other
// non-null value.
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	return string(raw)
}

// looseNumber returns a JSON number's value, or 0 for anything else.
func looseNumber(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return f
}
