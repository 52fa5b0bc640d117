// Command cchashdemo drives a cchash.Map with bounded concurrent synthetic
// load and exposes its shape over HTTP, generalizing the teacher's
// monitor.Server (expvar + pprof) with a Prometheus endpoint backed by
// ccprom.
package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"sync/atomic"
	"time"

	"github.com/aristanetworks/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scaletable/cchash/cchash"
	"github.com/scaletable/cchash/ccprom"
	cchashglog "github.com/scaletable/cchash/glog"
	"github.com/scaletable/cchash/sync/semaphore"
)

var (
	addr        = flag.String("addr", ":8080", "address to serve /debug, /debug/vars, /metrics on")
	workers     = flag.Int64("workers", 8, "maximum concurrent load-generator goroutines")
	targetKeys  = flag.Int("keys", 100000, "distinct keys the load generator cycles through")
	ratePerTick = flag.Int("ops-per-tick", 256, "operations issued per tick")
)

var (
	opsTotal    = expvar.NewInt("cchash_demo_ops_total")
	insertTotal = expvar.NewInt("cchash_demo_insert_total")
	removeTotal = expvar.NewInt("cchash_demo_remove_total")
)

func debugHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, `<html>
<head><title>/debug</title></head>
<body>
<p>/debug</p>
<div><a href="/debug/vars">vars</a></div>
<div><a href="/debug/pprof">pprof</a></div>
<div><a href="/metrics">metrics</a></div>
</body>
</html>
`)
}

func main() {
	flag.Parse()

	m := cchash.NewComparable[int, int64](
		cchash.WithLogger[int, int64](&cchashglog.Glog{}),
	)

	collector := ccprom.New("cchash_demo", m)
	registerCollector(collector)

	http.HandleFunc("/debug", debugHandler)
	http.Handle("/metrics", promhttp.Handler())

	go runLoadGenerator(context.Background(), m)

	glog.Infof("cchashdemo listening on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		glog.Fatalf("cchashdemo: %s", err)
	}
}

// runLoadGenerator drives m with a bounded pool of concurrent workers,
// capped by a semaphore.Weighted the way the teacher bounds concurrent
// gNMI subscriptions, instead of spawning one goroutine per key.
func runLoadGenerator(ctx context.Context, m *cchash.Map[int, int64]) {
	sem := semaphore.NewWeighted(*workers)
	var counter atomic.Int64
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		for i := 0; i < *ratePerTick; i++ {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			go func() {
				defer sem.Release(1)
				doOne(m, &counter)
			}()
		}
	}
}

func doOne(m *cchash.Map[int, int64], counter *atomic.Int64) {
	n := counter.Add(1)
	key := int(n) % *targetKeys

	opsTotal.Add(1)
	if n%3 == 0 {
		m.Remove(key)
		removeTotal.Add(1)
		return
	}
	m.Upsert(key, func() int64 { return n }).Close()
	insertTotal.Add(1)
}

func registerCollector(c *ccprom.Collector) {
	if err := prometheus.Register(c); err != nil {
		glog.Errorf("cchashdemo: failed to register collector: %s", err)
	}
}
