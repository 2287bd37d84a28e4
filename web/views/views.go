// Package views renders the dashboard as templ components.
//
//go:generate templ generate
package views

import (
	"strconv"
	"time"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
)

// Copy shown for the non-data views.
const (
	LoadingText = "Connecting to GateKeeper..."
	EmptyText   = "Waiting for traffic..."
)

// Data is everything the dashboard renders from.
type Data struct {
	Snapshot state.Snapshot
	Upstream string
	Interval time.Duration
	Version  string
}

// bannerMessage explains a failed or discarded poll. It is empty while the
// upstream is healthy or still loading.
func bannerMessage(snap state.Snapshot) string {
	switch snap.Status {
	case state.StatusFailed:
		if len(snap.Entries) > 0 {
			return "Cannot reach GateKeeper. Showing the last received data."
		}
		return "Cannot reach GateKeeper."
	case state.StatusInvalidPayload:
		return "GateKeeper returned an unexpected response. The feed was cleared."
	default:
		return ""
	}
}

func lastUpdate(snap state.Snapshot) string {
	if snap.LastSuccess == nil {
		return "never"
	}
	return snap.LastSuccess.UTC().Format("15:04:05 UTC")
}

func intervalMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
