package ccprom

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/scaletable/cchash/cchash"
)

func collect(t *testing.T, c *Collector) map[string]float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 8)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	values := map[string]float64{}
	for m := range ch {
		var d dto.Metric
		if err := m.Write(&d); err != nil {
			t.Fatalf("Write: %v", err)
		}
		values[m.Desc().String()] = d.GetGauge().GetValue()
	}
	return values
}

func TestCollectorReportsMapShape(t *testing.T) {
	m := cchash.NewComparable[int, int]()
	for i := 0; i < 100; i++ {
		m.Upsert(i, func() int { return i }).Close()
	}

	c := New("cchash_test", m)
	values := collect(t, c)

	var entries float64
	found := false
	for desc, v := range values {
		if strings.Contains(desc, "cchash_test_entries") {
			entries = v
			found = true
		}
	}
	if !found {
		t.Fatal("no cchash_test_entries metric collected")
	}
	if entries != 100 {
		t.Fatalf("entries gauge = %v, want 100", entries)
	}
}

func TestDescribeEmitsFiveDescriptors(t *testing.T) {
	m := cchash.NewComparable[int, int]()
	c := New("cchash_test2", m)

	ch := make(chan *prometheus.Desc, 8)
	go func() {
		c.Describe(ch)
		close(ch)
	}()

	n := 0
	for range ch {
		n++
	}
	if n != 5 {
		t.Fatalf("Describe emitted %d descriptors, want 5", n)
	}
}
