package lattice

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus counters a DB records against, per
// spec.md §6.2. A nil *Metrics is always safe to call methods on — every
// method is a no-op guard over a nil receiver — so Options.Metrics can be
// left unset when a caller doesn't want metrics wired in at all.
type Metrics struct {
	mutations     *prometheus.CounterVec
	subscriptions prometheus.Counter
}

// NewMetrics registers lattice's counters against reg and returns a
// Metrics ready to pass in Options. Passing the same *prometheus.Registry
// to two NewMetrics calls makes the second return the registration error
// (prometheus rejects duplicate registration).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Name:      "mutations_total",
			Help:      "Count of store mutations by kind.",
		}, []string{"kind"}),
		subscriptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lattice",
			Name:      "subscriptions_total",
			Help:      "Count of Subscribe calls.",
		}),
	}
	if err := reg.Register(m.mutations); err != nil {
		return nil, err
	}
	if err := reg.Register(m.subscriptions); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) inc(kind string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind).Inc()
}

func (m *Metrics) incInserted()      { m.inc("inserted") }
func (m *Metrics) incUpdated()       { m.inc("updated") }
func (m *Metrics) incDeleted()       { m.inc("deleted") }
func (m *Metrics) incLinked()        { m.inc("linked") }
func (m *Metrics) incUnlinked()      { m.inc("unlinked") }
func (m *Metrics) incSubscriptions() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}
