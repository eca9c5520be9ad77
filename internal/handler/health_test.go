package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthSkipsDependencies(t *testing.T) {
	logger, _ := logrustest.NewNullLogger()
	h := NewHealthHandler(nil, nil, logger)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyLogsFailedChecks(t *testing.T) {
	// Neither endpoint is listening, so both checks fail immediately.
	db, err := sqlx.Open("postgres", "postgres://localhost:1/none?sslmode=disable&connect_timeout=1")
	require.NoError(t, err)
	defer db.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:1"})
	defer redisClient.Close()

	logger, hook := logrustest.NewNullLogger()
	h := NewHealthHandler(db, redisClient, logger)

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.Len(t, hook.Entries, 2)
	checks := map[string]bool{}
	for _, entry := range hook.Entries {
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		assert.Equal(t, "readiness check failed", entry.Message)
		name, _ := entry.Data["check"].(string)
		checks[name] = true
	}
	assert.True(t, checks["database"])
	assert.True(t, checks["redis"])
}
