package telemetry

import (
	"testing"

	"github.com/danmuck/cydlink/internal/testutil/testlog"
)

func TestMonitorSnapshotShape(t *testing.T) {
	testlog.Start(t)
	m := NewMonitor()
	fields, err := m.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	want := []string{
		"date", "time", "cpu_percent",
		"ram_used_gb", "ram_total_gb",
		"network_sent_mb", "network_recv_mb",
	}
	if len(fields) != len(want) {
		t.Fatalf("fields=%d, want %d: %+v", len(fields), len(want), fields)
	}
	for i, name := range want {
		if fields[i].Name != name {
			t.Fatalf("field[%d]=%q, want %q", i, fields[i].Name, name)
		}
	}
	if v, _ := fields.Get("ram_total_gb"); v.(float64) <= 0 {
		t.Fatalf("ram_total_gb=%v", v)
	}
}
