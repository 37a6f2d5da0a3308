package httpapi

import (
	"net/http"
	"time"

	"github.com/ent0n29/screener/internal/observability"
)

func (s *Server) handleJudgeLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, observability.LatencySnapshot{
			GeneratedAt: time.Now().UTC(),
			Calls:       []observability.CallLatency{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.Latency.Snapshot())
}
