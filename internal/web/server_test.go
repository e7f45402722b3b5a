package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/launch-controller/internal/logic"
	"github.com/sweeney/launch-controller/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:      10,
		DebounceMs:  50,
		HeartbeatMs: 900000,
		CountdownMs: 5000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":8080",
		SerialPort:  "/dev/ttyUSB0",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/status.json")
	if err != nil {
		t.Fatalf("GET /status.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(logic.Status{
		Safety:     logic.SafetyArmed,
		Connection: logic.ConnConnected,
		Link:       logic.LinkOK,
		Key:        true,
		Counts:     logic.EventCounts{Sequences: 1, Fired: 4, Skipped: 1},
	})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/status.json")
	if err != nil {
		t.Fatalf("GET /status.json: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	sj := getStatus(t, ts.URL)

	if sj.Status.Safety != "ARMED" {
		t.Errorf("Safety: got %q, want ARMED", sj.Status.Safety)
	}
	if sj.Status.Link != "OK" {
		t.Errorf("Link: got %q, want OK", sj.Status.Link)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.Fired != 4 || sj.Status.Counts.Skipped != 1 {
		t.Errorf("Counts: got %+v", sj.Status.Counts)
	}
	if sj.Status.Config.CountdownMs != 5000 {
		t.Errorf("Config.CountdownMs: got %d, want 5000", sj.Status.Config.CountdownMs)
	}
	if sj.Status.Config.SerialPort != "/dev/ttyUSB0" {
		t.Errorf("Config.SerialPort: got %q", sj.Status.Config.SerialPort)
	}
}

func TestJSONUnknownBeforeFirstUpdate(t *testing.T) {
	ts, _ := newTestServer(t)

	sj := getStatus(t, ts.URL)
	if sj.Status.Safety != "UNKNOWN" {
		t.Errorf("Safety before first update: got %q, want UNKNOWN", sj.Status.Safety)
	}
}

func TestRejectsWrites(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/status.json", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /status.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/", "/index.html", "/nonexistent"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()

		if resp.StatusCode != 404 {
			t.Errorf("GET %s: got %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	tr.Update(logic.Status{Safety: logic.SafetyStarting, Connection: logic.ConnConnecting, Link: logic.LinkError})
	sj1 := getStatus(t, ts.URL)
	if sj1.Status.Connection != "CONNECTING" {
		t.Errorf("Connection: got %q, want CONNECTING", sj1.Status.Connection)
	}

	tr.Update(logic.Status{Safety: logic.SafetyEmergencyStopped, Connection: logic.ConnDisconnected, Link: logic.LinkNone})
	tr.SetMQTTConnected(true)

	sj2 := getStatus(t, ts.URL)
	if sj2.Status.Safety != "EMERGENCY_STOPPED" {
		t.Errorf("Safety: got %q, want EMERGENCY_STOPPED", sj2.Status.Safety)
	}
	if sj2.Status.Link != "NONE" {
		t.Errorf("Link: got %q, want NONE", sj2.Status.Link)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
