package agent

import (
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// logDiagnostics attaches a CPU/memory sample to a reconcile-pass log
// line, the same gopsutil usage pattern HydraDNS's cmd/hydradns uses
// for its own startup/runtime diagnostics.
func logDiagnostics(logger *slog.Logger, containerCount int) {
	fields := []any{"containers", containerCount}

	if vm, err := mem.VirtualMemory(); err == nil {
		fields = append(fields, "mem_used_percent", vm.UsedPercent)
	}
	if pct, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pct) > 0 {
		fields = append(fields, "cpu_used_percent", pct[0])
	}

	logger.Info("agent: reconcile pass", fields...)
}
