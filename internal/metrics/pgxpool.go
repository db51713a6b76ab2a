package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterPgxPoolMetrics exposes pgx connection pool statistics as Prometheus gauges.
func RegisterPgxPoolMetrics(pool *pgxpool.Pool) {
	poolGauge := func(name, help string, read func(stat *pgxpool.Stat) int32) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "deployhub",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(read(pool.Stat()))
		})
	}

	prometheus.MustRegister(
		poolGauge("pgxpool_acquired_conns", "Number of currently acquired connections in the pool",
			func(s *pgxpool.Stat) int32 { return s.AcquiredConns() }),
		poolGauge("pgxpool_max_conns", "Maximum number of connections in the pool",
			func(s *pgxpool.Stat) int32 { return s.MaxConns() }),
		poolGauge("pgxpool_total_conns", "Total number of connections in the pool",
			func(s *pgxpool.Stat) int32 { return s.TotalConns() }),
		poolGauge("pgxpool_idle_conns", "Number of idle connections in the pool",
			func(s *pgxpool.Stat) int32 { return s.IdleConns() }),
	)
}
