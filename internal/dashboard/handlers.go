package dashboard

import (
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/aggregate"
	apierrors "github.com/narvanalabs/gatekeeper-dashboard/internal/api/errors"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
	"github.com/narvanalabs/gatekeeper-dashboard/web/views"
)

// SummaryResponse is the body of GET /api/summary.
type SummaryResponse struct {
	Status      state.Status      `json:"status"`
	View        state.View        `json:"view"`
	Version     uint64            `json:"version"`
	Summary     aggregate.Summary `json:"summary"`
	TotalSpend  string            `json:"total_spend_display"`
	LastSuccess *time.Time        `json:"last_success,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
}

func (s *Server) viewData() views.Data {
	return views.Data{
		Snapshot: s.store.Snapshot(),
		Upstream: s.config.Upstream,
		Interval: s.config.Interval,
		Version:  s.config.Version,
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	templ.Handler(views.Page(s.viewData())).ServeHTTP(w, r)
}

func (s *Server) handlePartial(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	templ.Handler(views.Dashboard(s.viewData())).ServeHTTP(w, r)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	apierrors.WriteJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	w.Header().Set("Cache-Control", "no-store")
	apierrors.WriteJSON(w, http.StatusOK, SummaryResponse{
		Status:      snap.Status,
		View:        snap.View(),
		Version:     snap.Version,
		Summary:     snap.Summary,
		TotalSpend:  aggregate.FormatCost(snap.Summary.TotalSpend),
		LastSuccess: snap.LastSuccess,
		LastError:   snap.LastError,
	})
}
