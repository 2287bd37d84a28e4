package views

import (
	twmerge "github.com/Oudwins/tailwind-merge-go"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/models"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
)

const (
	panelBase   = "bg-gray-800 p-6 rounded-xl border border-gray-700 shadow-lg"
	feedRowBase = "p-3 rounded-lg border flex justify-between items-center gap-4 bg-gray-900/40 border-gray-700"
	pillBase    = "text-xs px-2 py-0.5 rounded-full bg-gray-700 text-gray-300"
)

// panelClass returns the card/panel classes with extra overriding conflicts.
func panelClass(extra ...string) string {
	return twmerge.Merge(append([]string{panelBase}, extra...)...)
}

// feedRowClass colors a feed row by action. Unrecognized actions keep the
// neutral base.
func feedRowClass(action models.Action) string {
	switch action {
	case models.ActionBlocked:
		return twmerge.Merge(feedRowBase, "bg-red-900/20 border-red-800/50")
	case models.ActionAllowed:
		return twmerge.Merge(feedRowBase, "bg-emerald-900/10 border-emerald-800/30")
	default:
		return feedRowBase
	}
}

// actionTextClass colors the action label.
func actionTextClass(action models.Action) string {
	base := "text-sm font-bold text-gray-300"
	switch action {
	case models.ActionBlocked:
		return twmerge.Merge(base, "text-red-400")
	case models.ActionAllowed:
		return twmerge.Merge(base, "text-emerald-400")
	default:
		return base
	}
}

// modePillClass highlights monitor-mode decisions.
func modePillClass(mode models.Mode) string {
	if mode == models.ModeMonitor {
		return twmerge.Merge(pillBase, "bg-amber-900/40 text-amber-300")
	}
	return pillBase
}

type statusBadge struct {
	Label     string
	DotClass  string
	TextClass string
}

func badgeFor(status state.Status) statusBadge {
	dot := "w-2 h-2 rounded-full bg-gray-500"
	text := "font-semibold text-gray-400"

	switch status {
	case state.StatusConnected:
		return statusBadge{
			Label:     "System Active",
			DotClass:  twmerge.Merge(dot, "bg-emerald-500 animate-pulse"),
			TextClass: twmerge.Merge(text, "text-emerald-400"),
		}
	case state.StatusFailed:
		return statusBadge{
			Label:     "Connection Lost",
			DotClass:  twmerge.Merge(dot, "bg-red-500"),
			TextClass: twmerge.Merge(text, "text-red-400"),
		}
	case state.StatusInvalidPayload:
		return statusBadge{
			Label:     "Invalid Payload",
			DotClass:  twmerge.Merge(dot, "bg-amber-500"),
			TextClass: twmerge.Merge(text, "text-amber-400"),
		}
	default:
		return statusBadge{
			Label:     "Connecting...",
			DotClass:  twmerge.Merge(dot, "animate-pulse"),
			TextClass: text,
		}
	}
}
