package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/nearexpiry/backend-nearexpiry/internal/common"
)

// Checker reports on the dependencies the API cannot serve without.
type Checker interface {
	PingDB(ctx context.Context) error
	PingRedis(ctx context.Context) error
}

// PoolChecker checks a pgx pool and a Redis client.
type PoolChecker struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

func (c PoolChecker) PingDB(ctx context.Context) error {
	if c.Pool == nil {
		return nil
	}
	return c.Pool.Ping(ctx)
}

func (c PoolChecker) PingRedis(ctx context.Context) error {
	if c.Redis == nil {
		return nil
	}
	return c.Redis.Ping(ctx).Err()
}

// Handler serves the liveness and readiness probes.
type Handler struct {
	checker Checker
	timeout time.Duration
}

// NewHandler constructs a Handler. A zero timeout defaults to two seconds
// per dependency.
func NewHandler(checker Checker, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Handler{checker: checker, timeout: timeout}
}

// Live handles GET /healthz. It only proves the process is responsive.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz and fails when a dependency is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok", "redis": "ok"}
	healthy := true

	run := func(name string, ping func(context.Context) error) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
		}
	}
	run("database", h.checker.PingDB)
	run("redis", h.checker.PingRedis)

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, map[string]any{"status": statusWord(healthy), "checks": checks})
}

func statusWord(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "degraded"
}
