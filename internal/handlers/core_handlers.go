package handlers

import (
	"net/http"
	"time"
)

// HandleHealth handles health check requests
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		openInboxes, err := s.Engine.OpenInboxCount(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}

		requests, errors := s.Metrics.Counts()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":         "healthy",
			"open_inboxes":   openInboxes,
			"signed_in":      s.Session.ActiveCount(),
			"requests":       requests,
			"errors":         errors,
			"uptime_seconds": int64(s.Metrics.Uptime().Seconds()),
			"server_time":    time.Now(),
		})
	}
}
