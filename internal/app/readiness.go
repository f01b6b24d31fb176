package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/immigration-assistant/internal/adapter/cache/redis"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/httpserver"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/immigration-assistant/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/immigration-assistant/internal/domain"
)

const probeTimeout = 3 * time.Second

// BuildProbes assembles the readiness probe set from whatever dependencies
// are configured; nil dependencies are skipped rather than reported down.
func BuildProbes(pool *pgxpool.Pool, cache *redis.Cache, vec *qdrant.Client, producer *redpanda.Producer) map[string]httpserver.ReadinessProbe {
	probes := make(map[string]httpserver.ReadinessProbe)
	if pool != nil {
		probes["postgres"] = withTimeout(func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	}
	if cache != nil {
		probes["redis"] = withTimeout(cache.Ping)
	}
	if vec != nil {
		probes["qdrant"] = withTimeout(vec.Healthz)
	}
	if producer != nil {
		probes["queue"] = withTimeout(producer.Ping)
	}
	if len(probes) == 0 {
		probes["none"] = func(domain.Context) error {
			return fmt.Errorf("no dependencies configured")
		}
	}
	return probes
}

func withTimeout(f func(context.Context) error) httpserver.ReadinessProbe {
	return func(ctx domain.Context) error {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		return f(ctx)
	}
}
