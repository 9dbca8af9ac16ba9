package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/danmuck/cydlink/internal/testutil/testlog"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	messages := []Message{
		Command{Action: "TEST", Timestamp: 1700000000},
		Telemetry{Fields: Fields{
			{Name: "cpu_percent", Value: 12.3},
			{Name: "ram_used_gb", Value: 4.1},
			{Name: "date", Value: "2026-08-29"},
		}, Timestamp: 1700000000},
		Ack{Command: "TEST", Result: ResultSuccess, Detail: "ok", Timestamp: 1700000000},
		Status{State: StateConnected, Timestamp: 1700000000},
		Heartbeat{Timestamp: 1700000000},
		Fault{Code: "E_LINK", Detail: "read failed", Timestamp: 1700000000},
	}
	for _, in := range messages {
		frame, err := Encode(in, DefaultLimits())
		if err != nil {
			t.Fatalf("encode %T: %v", in, err)
		}
		if !bytes.HasSuffix(frame, []byte("\n")) {
			t.Fatalf("frame missing delimiter: %q", frame)
		}
		if bytes.Count(frame, []byte("\n")) != 1 {
			t.Fatalf("frame has extra delimiters: %q", frame)
		}
		out, ok := Decode(frame, DefaultLimits())
		if !ok {
			t.Fatalf("decode %T failed: %q", in, frame)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("round trip mismatch: in=%+v out=%+v", in, out)
		}
	}
}

func TestDecodeTelemetryPreservesFieldOrder(t *testing.T) {
	testlog.Start(t)
	frame := []byte(`{"type":"system_data","timestamp":1700000000,"data":{"z_last":1,"a_first":2,"m_mid":"x"}}`)
	msg, ok := Decode(frame, DefaultLimits())
	if !ok {
		t.Fatalf("decode failed")
	}
	tel := msg.(Telemetry)
	got := []string{tel.Fields[0].Name, tel.Fields[1].Name, tel.Fields[2].Name}
	want := []string{"z_last", "a_first", "m_mid"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("field order: got=%v want=%v", got, want)
	}
}

func TestDecodeLegacyFlattenedTelemetry(t *testing.T) {
	testlog.Start(t)
	frame := []byte(`{"type":"system_data","timestamp":1700000000,"cpu_percent":12.3,"ram_total_gb":16.0}`)
	msg, ok := Decode(frame, DefaultLimits())
	if !ok {
		t.Fatalf("decode failed")
	}
	tel := msg.(Telemetry)
	if v, _ := tel.Fields.Get("cpu_percent"); v != 12.3 {
		t.Fatalf("cpu_percent=%v", v)
	}
	if v, _ := tel.Fields.Get("ram_total_gb"); v != 16.0 {
		t.Fatalf("ram_total_gb=%v", v)
	}
	if _, ok := tel.Fields.Get("type"); ok {
		t.Fatalf("type leaked into fields")
	}
}

func TestDecodeRejectsNonFrames(t *testing.T) {
	testlog.Start(t)
	lines := []string{
		"plain debug text",
		"",
		"ESP32 booting...",
		"[1,2,3]",
		`"just a string"`,
		`{"no_type":1}`,
		`{"type":"mystery","timestamp":1}`,
		`{"type":"command","timestamp":1}`,
		`{"type":"command","action":"TEST"}`,
		`{"type":"ack","command":"TEST","result":"sorta","timestamp":1}`,
		`{"type":"status","state":"upside_down","timestamp":1}`,
		`{"type":"heartbeat"}`,
		`{"type":"command","action":"TEST","timestamp":}`,
	}
	for _, line := range lines {
		if msg, ok := Decode([]byte(line), DefaultLimits()); ok {
			t.Fatalf("decoded %q into %+v", line, msg)
		}
	}
}

func TestIsFrameCandidate(t *testing.T) {
	testlog.Start(t)
	if IsFrameCandidate([]byte("loose text")) {
		t.Fatalf("text flagged as candidate")
	}
	if !IsFrameCandidate([]byte("  {\"type\":\"heartbeat\"}  \r\n")) {
		t.Fatalf("padded frame not recognized")
	}
	if IsFrameCandidate([]byte("{")) {
		t.Fatalf("lone brace flagged as candidate")
	}
}

func TestEncodeOversizedFrame(t *testing.T) {
	testlog.Start(t)
	msg := Ack{
		Command:   "TEST",
		Result:    ResultFailed,
		Detail:    strings.Repeat("x", 2048),
		Timestamp: 1700000000,
	}
	frame, err := Encode(msg, DefaultLimits())
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if frame != nil {
		t.Fatalf("oversized encode leaked partial frame")
	}
}

func TestDecodeOversizedFrame(t *testing.T) {
	testlog.Start(t)
	line := `{"type":"command","action":"` + strings.Repeat("A", 2048) + `","timestamp":1700000000}`
	if _, ok := Decode([]byte(line), DefaultLimits()); ok {
		t.Fatalf("oversized frame decoded")
	}
}

func TestFieldsRejectStructuredValues(t *testing.T) {
	testlog.Start(t)
	frame := []byte(`{"type":"system_data","timestamp":1,"data":{"nested":{"a":1}}}`)
	if _, ok := Decode(frame, DefaultLimits()); ok {
		t.Fatalf("nested field value decoded")
	}
	_, err := Fields{{Name: "bad", Value: []int{1}}}.MarshalJSON()
	if !errors.Is(err, ErrInvalidFieldValue) {
		t.Fatalf("expected ErrInvalidFieldValue, got %v", err)
	}
}
