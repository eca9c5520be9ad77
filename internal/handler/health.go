package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/kobofin/loan-engine/pkg/response"
)

const readyCheckTimeout = 5 * time.Second

type HealthHandler struct {
	db     *sqlx.DB
	redis  *redis.Client
	logger *logrus.Logger
}

func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redisClient,
		logger: logger,
	}
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health reports liveness only; it never touches a dependency.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    map[string]string{},
	})
}

// Ready verifies the dependencies a request would actually hit. Each failed
// check is logged so the reason survives the flattened 503 body.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	checks := map[string]func(context.Context) error{
		"database": h.db.PingContext,
		"redis":    func(ctx context.Context) error { return h.redis.Ping(ctx).Err() },
	}

	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(checks)),
	}
	for name, check := range checks {
		if err := check(ctx); err != nil {
			h.logger.WithError(err).WithField("check", name).Warn("readiness check failed")
			status.Status = "error"
			status.Checks[name] = "failed: " + err.Error()
			continue
		}
		status.Checks[name] = "ok"
	}

	if status.Status == "error" {
		response.Error(w, http.StatusServiceUnavailable, "service not ready", nil)
		return
	}
	response.Success(w, status)
}
