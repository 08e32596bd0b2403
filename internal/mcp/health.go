package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bull/campus-rag/internal/index"
	"github.com/bull/campus-rag/internal/session"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status         string `json:"status"`
	Qdrant         string `json:"qdrant"`
	AdminChunks    int    `json:"admin_chunks"`
	ActiveSessions int    `json:"active_sessions"`
	Timestamp      string `json:"timestamp"`
}

// HealthChecker interface defines the health check dependency.
// The storage layer implements this via its Health() method.
type HealthChecker interface {
	Health(ctx context.Context) error
}

func qdrantStatus(ctx context.Context, checker HealthChecker) string {
	if checker == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := checker.Health(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}

// NewHealthHandler creates an HTTP handler for the /health endpoint. The
// service is unhealthy only when a configured Qdrant is unreachable; search
// itself runs from memory.
func NewHealthHandler(checker HealthChecker, admin *index.CorpusIndex, sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:      "healthy",
			Qdrant:      qdrantStatus(r.Context(), checker),
			AdminChunks: admin.Size(),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		if sessions != nil {
			response.ActiveSessions = sessions.Count()
		}

		status := http.StatusOK
		if response.Qdrant == "disconnected" {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}
}
