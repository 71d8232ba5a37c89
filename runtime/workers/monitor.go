package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"

	"campus-relay/observability"
)

// MonitorWorker periodically logs relay counters together with process
// and Go runtime figures, giving operators a heartbeat line to alert on
// without scraping anything.
type MonitorWorker struct {
	log      *slog.Logger
	stats    *observability.RelayStats
	interval time.Duration
}

func NewMonitorWorker(log *slog.Logger, stats *observability.RelayStats, interval time.Duration) *MonitorWorker {
	return &MonitorWorker{log: log, stats: stats, interval: interval}
}

func (w *MonitorWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		w.log.Warn("process introspection unavailable", "error", err)
		proc = nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping monitor")
			return nil
		case <-ticker.C:
			w.report(proc)
		}
	}
}

func (w *MonitorWorker) report(proc *process.Process) {
	snap := w.stats.Snapshot()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	attrs := []any{
		"connections", snap.CurrentConnections,
		"online_identities", snap.OnlineIdentities,
		"events_routed", snap.EventsRouted,
		"deliveries", snap.Deliveries,
		"delivery_failures", snap.DeliveryFailures,
		"store_lookup_errors", snap.StoreLookupErrors,
		"active_calls", snap.ActiveCalls,
		"goroutines", runtime.NumGoroutine(),
		"alloc_mb", memStats.Alloc / 1024 / 1024,
		"num_gc", memStats.NumGC,
	}

	if proc != nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			attrs = append(attrs, "cpu_percent", cpu)
		}
		if mem, err := proc.MemoryInfo(); err == nil {
			attrs = append(attrs, "rss_mb", mem.RSS/1024/1024)
		}
	}

	w.log.Info("relay heartbeat", attrs...)
}
