// Package ccprom exposes a cchash.Map's Statistics as Prometheus gauges.
package ccprom

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scaletable/cchash/cchash"
)

// Statser is any map whose shape can be snapshotted, decoupling this
// collector from cchash.Map's key/value type parameters - prometheus.Collector
// cannot itself be implemented by a generic type, so the collector talks to
// the snapshot type instead of the map directly.
type Statser interface {
	Statistics() cchash.Statistics
}

// Collector adapts a Statser to prometheus.Collector, following the
// teacher's cmd/ocprometheus collector: a small mutex-guarded struct
// whose Collect method takes a fresh Statistics snapshot of the source map
// on every scrape; nothing is cached between scrapes.
type Collector struct {
	mu   sync.Mutex
	name string
	m    Statser

	cells     *prometheus.Desc
	entries   *prometheus.Desc
	overflow  *prometheus.Desc
	loadRatio *prometheus.Desc
	migrating *prometheus.Desc
}

// New returns a Collector that reports m's Statistics under metric names
// prefixed by name (e.g. name="cchash_sessions" yields
// cchash_sessions_cells, cchash_sessions_entries, ...).
func New(name string, m Statser) *Collector {
	labels := []string{}
	return &Collector{
		name: name,
		m:    m,
		cells: prometheus.NewDesc(name+"_cells", "Number of cells in the current array plus any draining predecessor.",
			labels, nil),
		entries: prometheus.NewDesc(name+"_entries", "Live entries in primary storage.",
			labels, nil),
		overflow: prometheus.NewDesc(name+"_overflow_entries", "Live entries in overflow chains.",
			labels, nil),
		loadRatio: prometheus.NewDesc(name+"_load_ratio", "Primary-slot occupancy ratio.",
			labels, nil),
		migrating: prometheus.NewDesc(name+"_migrating", "1 if a resize is currently draining an old array.",
			labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cells
	ch <- c.entries
	ch <- c.overflow
	ch <- c.loadRatio
	ch <- c.migrating
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.m.Statistics()
	ch <- prometheus.MustNewConstMetric(c.cells, prometheus.GaugeValue, float64(st.Cells))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.PrimaryCount))
	ch <- prometheus.MustNewConstMetric(c.overflow, prometheus.GaugeValue, float64(st.OverflowCount))
	ch <- prometheus.MustNewConstMetric(c.loadRatio, prometheus.GaugeValue, st.LoadFactor())
	migrating := 0.0
	if st.Migrating {
		migrating = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.migrating, prometheus.GaugeValue, migrating)
}
