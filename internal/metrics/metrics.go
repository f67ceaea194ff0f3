package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reward_relay"

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the relay.
//
// Metrics:
//   - reward_relay_messages_total{result} - admission outcome per message
//   - reward_relay_forwards_total{result} - forwarded, duplicate, enrich_failed, send_failed
//   - reward_relay_retractions_total{kind,result} - recalls of helper, forward and warning messages
//   - reward_relay_danmaku_total{result} - notification fan-out attempts
//   - reward_relay_ledger_entries - live ledger entries
type Metrics struct {
	MessagesTotal    *prometheus.CounterVec
	ForwardsTotal    *prometheus.CounterVec
	RetractionsTotal *prometheus.CounterVec
	DanmakuTotal     *prometheus.CounterVec
	LedgerEntries    prometheus.Gauge
}

// New returns the process-wide metrics, registering them on first use
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			MessagesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "messages_total",
					Help:      "Inbound messages by admission result",
				},
				[]string{"result"},
			),
			ForwardsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "forwards_total",
					Help:      "Dispatch outcomes for admitted messages",
				},
				[]string{"result"},
			),
			RetractionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "retractions_total",
					Help:      "Recalls of messages the relay sent",
				},
				[]string{"kind", "result"},
			),
			DanmakuTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "danmaku_total",
					Help:      "Danmaku notification attempts by result",
				},
				[]string{"result"},
			),
			LedgerEntries: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "ledger_entries",
					Help:      "Live entries in the forward ledger",
				},
			),
		}
	})
	return globalMetrics
}
