package pool

import "github.com/prometheus/client_golang/prometheus"

// metricsSet is the Prometheus instrumentation surface for the pool,
// playing the same role as the teacher's hand-rolled PoolMetrics in
// provider/pool.go, but backed by real collectors so the numbers are
// scrapeable from cmd/connpoold's /metrics endpoint without a bespoke
// exposition format.
type metricsSet struct {
	connectionsOpen *prometheus.GaugeVec
	waiters         *prometheus.GaugeVec
	connectsTotal   *prometheus.CounterVec
	waitDuration    prometheus.Histogram
}

func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	m := &metricsSet{
		connectionsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "connpool",
			Name:      "connections_open",
			Help:      "Open (established or in-flight) connections per destination.",
		}, []string{"host", "port"}),
		waiters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "connpool",
			Name:      "waiters",
			Help:      "Parked waiters per destination.",
		}, []string{"host", "port"}),
		connectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connpool",
			Name:      "connects_total",
			Help:      "Connection attempts per destination, labeled by outcome.",
		}, []string{"host", "port", "result"}),
		waitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "connpool",
			Name:      "wait_duration_seconds",
			Help:      "Time a waiter spent parked in the wait queue before being handed a connection.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connectionsOpen, m.waiters, m.connectsTotal, m.waitDuration)
	}
	return m
}

// noopMetrics returns a metricsSet whose collectors are registered nowhere.
// NewConnectionManager builds the same thing via newMetricsSet(nil) when
// given no registry.
func noopMetrics() *metricsSet {
	return newMetricsSet(nil)
}

func (m *metricsSet) setConnections(addr TargetAddress, n int) {
	if m == nil {
		return
	}
	m.connectionsOpen.WithLabelValues(addr.Host, portLabel(addr.Port)).Set(float64(n))
}

func (m *metricsSet) setWaiters(addr TargetAddress, n int) {
	if m == nil {
		return
	}
	m.waiters.WithLabelValues(addr.Host, portLabel(addr.Port)).Set(float64(n))
}

func (m *metricsSet) incConnect(addr TargetAddress, result string) {
	if m == nil {
		return
	}
	m.connectsTotal.WithLabelValues(addr.Host, portLabel(addr.Port), result).Inc()
}

func (m *metricsSet) observeWait(seconds float64) {
	if m == nil {
		return
	}
	m.waitDuration.Observe(seconds)
}

func portLabel(p uint16) string {
	return uitoa(uint64(p))
}

func uitoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
