// Package aggregate derives dashboard statistics from a batch of decision
// log entries.
package aggregate

import (
	"fmt"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/models"
)

// TeamSpend is the accumulated cost for one team.
type TeamSpend struct {
	Team string  `json:"team"`
	Cost float64 `json:"cost"`
}

// Summary holds the statistics shown on the dashboard cards and chart.
type Summary struct {
	Entries     int         `json:"entries"`
	TotalSpend  float64     `json:"total_spend"`
	Blocked     int         `json:"blocked"`
	Allowed     int         `json:"allowed"`
	ActiveTeams int         `json:"active_teams"`
	Teams       []TeamSpend `json:"teams"`
}

// Compute derives a Summary from entries. Teams are listed in order of first
// appearance.
func Compute(entries []models.LogEntry) Summary {
	s := Summary{
		Entries: len(entries),
		Teams:   []TeamSpend{},
	}

	index := make(map[string]int)
	for _, e := range entries {
		s.TotalSpend += e.Cost

		switch {
		case e.IsBlocked():
			s.Blocked++
		case e.IsAllowed():
			s.Allowed++
		}

		i, ok := index[e.Team]
		if !ok {
			i = len(s.Teams)
			index[e.Team] = i
			s.Teams = append(s.Teams, TeamSpend{Team: e.Team})
		}
		s.Teams[i].Cost += e.Cost
	}

	s.ActiveTeams = len(s.Teams)
	return s
}

// SpendByTeam returns the per-team totals keyed by team name.
func (s Summary) SpendByTeam() map[string]float64 {
	m := make(map[string]float64, len(s.Teams))
	for _, t := range s.Teams {
		m[t.Team] = t.Cost
	}
	return m
}

// MaxTeamSpend returns the largest per-team total, or 0 when there are none.
func (s Summary) MaxTeamSpend() float64 {
	var max float64
	for _, t := range s.Teams {
		if t.Cost > max {
			max = t.Cost
		}
	}
	return max
}

// FormatCost renders an amount the way the dashboard displays currency.
func FormatCost(v float64) string {
	return fmt.Sprintf("$%.5f", v)
}
