package circuitbreaker

import (
	"encoding/json"
	"net/http"

	"github.com/angeloszaimis/healthwatch/internal/urlutil"
)

// Handler serves the current breaker states as JSON, keyed by redacted URL.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		stats := r.Stats()

		redacted := make(map[string]BreakerStats, len(stats))
		for url, s := range stats {
			redacted[urlutil.Redact(url)] = s
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(redacted); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
