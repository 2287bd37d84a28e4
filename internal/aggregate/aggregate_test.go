package aggregate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/models"
)

const epsilon = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= epsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// genAction generates recognized and unrecognized action strings.
func genAction() gopter.Gen {
	return gen.OneConstOf(
		models.ActionAllowed,
		models.ActionBlocked,
		models.Action("REVIEW"),
		models.Action(""),
	)
}

// genLogEntry generates a random decision entry.
func genLogEntry() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("eng", "ops", "sales", "research", ""),
		genAction(),
		gen.Float64Range(0, 50),
		gen.AlphaString(),
	).Map(func(vals []interface{}) models.LogEntry {
		return models.LogEntry{
			Team:   vals[0].(string),
			Action: vals[1].(models.Action),
			Cost:   vals[2].(float64),
			User:   vals[3].(string),
		}
	})
}

func newProperties() *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	return gopter.NewProperties(parameters)
}

// TestTotalSpendIsSumOfCosts checks that total spend equals the sum of every
// entry's cost.
func TestTotalSpendIsSumOfCosts(t *testing.T) {
	properties := newProperties()

	properties.Property("total spend equals sum of costs", prop.ForAll(
		func(entries []models.LogEntry) bool {
			var want float64
			for _, e := range entries {
				want += e.Cost
			}
			return approxEqual(Compute(entries).TotalSpend, want)
		},
		gen.SliceOf(genLogEntry()),
	))

	properties.TestingRun(t)
}

// TestOutcomeCountsBoundedByEntries checks that blocked plus allowed never
// exceeds the number of entries, since other action strings count as neither.
func TestOutcomeCountsBoundedByEntries(t *testing.T) {
	properties := newProperties()

	properties.Property("blocked + allowed <= entries", prop.ForAll(
		func(entries []models.LogEntry) bool {
			s := Compute(entries)
			return s.Blocked+s.Allowed <= len(entries) && s.Entries == len(entries)
		},
		gen.SliceOf(genLogEntry()),
	))

	properties.TestingRun(t)
}

// TestTeamSpendSumsToTotal checks that per-team totals add up to total spend.
func TestTeamSpendSumsToTotal(t *testing.T) {
	properties := newProperties()

	properties.Property("per-team spend sums to total spend", prop.ForAll(
		func(entries []models.LogEntry) bool {
			s := Compute(entries)
			var sum float64
			for _, v := range s.SpendByTeam() {
				sum += v
			}
			return approxEqual(sum, s.TotalSpend)
		},
		gen.SliceOf(genLogEntry()),
	))

	properties.Property("active teams equals distinct team count", prop.ForAll(
		func(entries []models.LogEntry) bool {
			distinct := make(map[string]struct{})
			for _, e := range entries {
				distinct[e.Team] = struct{}{}
			}
			s := Compute(entries)
			return s.ActiveTeams == len(distinct) && len(s.Teams) == len(distinct)
		},
		gen.SliceOf(genLogEntry()),
	))

	properties.TestingRun(t)
}

func TestComputeKnownBatch(t *testing.T) {
	body := `[{"team":"eng","action":"BLOCKED","cost":1.5},{"team":"eng","action":"ALLOWED","cost":0.5}]`

	var entries []models.LogEntry
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	s := Compute(entries)
	if s.TotalSpend != 2.0 {
		t.Errorf("TotalSpend = %v, want 2.0", s.TotalSpend)
	}
	if s.Blocked != 1 {
		t.Errorf("Blocked = %d, want 1", s.Blocked)
	}
	if s.Allowed != 1 {
		t.Errorf("Allowed = %d, want 1", s.Allowed)
	}
	byTeam := s.SpendByTeam()
	if len(byTeam) != 1 || byTeam["eng"] != 2.0 {
		t.Errorf("SpendByTeam = %v, want map[eng:2]", byTeam)
	}
}

func TestComputeTeamOrderFollowsFirstAppearance(t *testing.T) {
	entries := []models.LogEntry{
		{Team: "ops", Cost: 1},
		{Team: "eng", Cost: 2},
		{Team: "ops", Cost: 3},
		{Team: "sales", Cost: 0},
		{Team: "eng", Cost: 1},
	}

	s := Compute(entries)
	want := []TeamSpend{{"ops", 4}, {"eng", 3}, {"sales", 0}}
	if len(s.Teams) != len(want) {
		t.Fatalf("got %d teams, want %d", len(s.Teams), len(want))
	}
	for i := range want {
		if s.Teams[i] != want[i] {
			t.Errorf("Teams[%d] = %+v, want %+v", i, s.Teams[i], want[i])
		}
	}
	if got := s.MaxTeamSpend(); got != 4 {
		t.Errorf("MaxTeamSpend = %v, want 4", got)
	}
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil)
	if s.Entries != 0 || s.TotalSpend != 0 || s.Blocked != 0 || s.Allowed != 0 || s.ActiveTeams != 0 {
		t.Errorf("expected zero summary, got %+v", s)
	}
	if s.Teams == nil {
		t.Error("Teams should be an empty slice, not nil")
	}
	if s.MaxTeamSpend() != 0 {
		t.Error("MaxTeamSpend of empty summary should be 0")
	}
}

func TestFormatCost(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00000"},
		{2, "$2.00000"},
		{0.000123456, "$0.00012"},
		{1.5, "$1.50000"},
	}
	for _, tt := range tests {
		if got := FormatCost(tt.in); got != tt.want {
			t.Errorf("FormatCost(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
