// Package telemetry samples host metrics for the periodic system_data
// push to the device.
package telemetry

import (
	"math"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	gnet "github.com/shirou/gopsutil/v4/net"

	"github.com/danmuck/cydlink/internal/protocol"
)

// Source provides one metric snapshot per call.
type Source interface {
	Snapshot() (protocol.Fields, error)
}

// Monitor samples CPU, memory, and network counters. The first CPU
// reading after construction reports zero; later calls report usage
// since the previous call.
type Monitor struct {
	now func() time.Time
}

func NewMonitor() *Monitor {
	// Prime the CPU delta baseline so the first snapshot is not garbage.
	_, _ = cpu.Percent(0, false)
	return &Monitor{now: time.Now}
}

func (m *Monitor) Snapshot() (protocol.Fields, error) {
	now := m.now()
	fields := protocol.Fields{
		{Name: "date", Value: now.Format("2006-01-02")},
		{Name: "time", Value: now.Format("15:04:05")},
	}

	cpuPercent := 0.0
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}
	fields = append(fields, protocol.Field{Name: "cpu_percent", Value: round1(cpuPercent)})

	var usedGB, totalGB float64
	if vm, err := mem.VirtualMemory(); err == nil {
		usedGB = float64(vm.Used) / (1 << 30)
		totalGB = float64(vm.Total) / (1 << 30)
	}
	fields = append(fields,
		protocol.Field{Name: "ram_used_gb", Value: round1(usedGB)},
		protocol.Field{Name: "ram_total_gb", Value: round1(totalGB)},
	)

	var sentMB, recvMB float64
	if counters, err := gnet.IOCounters(false); err == nil && len(counters) > 0 {
		sentMB = float64(counters[0].BytesSent) / (1 << 20)
		recvMB = float64(counters[0].BytesRecv) / (1 << 20)
	}
	fields = append(fields,
		protocol.Field{Name: "network_sent_mb", Value: round1(sentMB)},
		protocol.Field{Name: "network_recv_mb", Value: round1(recvMB)},
	)

	return fields, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
