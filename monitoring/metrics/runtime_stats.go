package metrics

import (
	"log"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	metricMemAlloc = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "valtrack:runtime:mem:alloc",
		Help: "Allocated memory",
	})
	metricMemTotalAlloc = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "valtrack:runtime:mem:total_alloc",
		Help: "Total allocated memory",
	})
	metricMemHeapAlloc = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "valtrack:runtime:mem:heap_alloc",
		Help: "Heap allocated memory",
	})
	metricMemNumGC = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "valtrack:runtime:mem:num_gc",
		Help: "Number of GCs",
	})
)

func init() {
	for _, collector := range []prometheus.Collector{
		metricMemAlloc,
		metricMemTotalAlloc,
		metricMemHeapAlloc,
		metricMemNumGC,
	} {
		if err := prometheus.Register(collector); err != nil {
			log.Println("could not register prometheus collector")
		}
	}
}

// ReportRuntimeStats updates runtime gauges on the given cadence until the
// stop channel closes.
func ReportRuntimeStats(logger *zap.Logger, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			logger.Debug("mem stats",
				zap.Uint64("mem.Alloc", mem.Alloc),
				zap.Uint64("mem.TotalAlloc", mem.TotalAlloc),
				zap.Uint64("mem.HeapAlloc", mem.HeapAlloc),
				zap.Uint32("mem.NumGC", mem.NumGC),
			)
			metricMemAlloc.Set(float64(mem.Alloc))
			metricMemTotalAlloc.Set(float64(mem.TotalAlloc))
			metricMemHeapAlloc.Set(float64(mem.HeapAlloc))
			metricMemNumGC.Set(float64(mem.NumGC))
		case <-stop:
			return
		}
	}
}
