package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/smazurov/camwatch/internal/api/models"
	"github.com/smazurov/camwatch/internal/capture"
	"github.com/smazurov/camwatch/internal/config"
	"github.com/smazurov/camwatch/internal/detection"
)

func testOptions(t *testing.T) *Options {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.toml")
	body := "[[sources]]\nid = \"desk\"\ntype = \"webcam\"\nindex = 0\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return &Options{
		SourcesFile:           path,
		Port:                  "127.0.0.1:0",
		BrokerHost:            "127.0.0.1",
		BrokerPort:            15570,
		CaptureBackend:        "ffmpeg",
		CaptureBackoffMs:      50,
		CaptureWidth:          64,
		CaptureHeight:         48,
		FFmpegBinary:          "/nonexistent/ffmpeg",
		FFmpegOptions:         "low_latency",
		DetectorKind:          "none",
		DetectorMinConfidence: "0.5",
		DisplayCellWidth:      64,
		DisplayCellHeight:     48,
		DisplayQuality:        80,
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" person, ,car,")
	if !slices.Equal(got, []string{"person", "car"}) {
		t.Errorf("splitList = %v", got)
	}
	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %v, want nil", got)
	}
}

func TestNewApplicationConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"bad broker port", func(o *Options) { o.BrokerPort = 70000 }},
		{"bad cell size", func(o *Options) { o.DisplayCellWidth = 0 }},
		{"missing sources", func(o *Options) { o.SourcesFile = filepath.Join(t.TempDir(), "none.toml") }},
		{"bad ffmpeg options", func(o *Options) { o.FFmpegOptions = "rtsp_tcp,rtsp_udp" }},
		{"unknown backend", func(o *Options) { o.CaptureBackend = "v4l2" }},
		{"unknown detector", func(o *Options) { o.DetectorKind = "magic" }},
		{"http detector without url", func(o *Options) { o.DetectorKind = "http" }},
		{"bad min confidence", func(o *Options) { o.DetectorMinConfidence = "high" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(t)
			tt.modify(opts)
			app, err := newApplication(opts)
			if app != nil {
				app.Stop()
			}
			if !errors.Is(err, config.ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestNewApplicationOfflineSource(t *testing.T) {
	opts := testOptions(t)
	opts.SourcesWatch = true

	app, err := newApplication(opts)
	if err != nil {
		t.Fatalf("newApplication: %v", err)
	}
	defer app.Stop()

	states := app.service.States()
	if len(states) != 1 || states[0].ID != "desk" {
		t.Fatalf("states = %+v", states)
	}
	if states[0].State == capture.StateOnline {
		t.Error("source with a missing ffmpeg binary reported online")
	}
	if !app.broker.IsRunning() {
		t.Error("broker not running")
	}

	rec := httptest.NewRecorder()
	app.server.GetMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var health models.HealthData
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Broadcast == nil || health.Broadcast.Clients < 1 {
		t.Errorf("health broadcast = %+v, want the publisher counted", health.Broadcast)
	}
}

func TestNewDetector(t *testing.T) {
	app := &application{opts: testOptions(t)}

	d, err := app.newDetector()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(detection.NopDetector); !ok {
		t.Errorf("detector = %T, want NopDetector", d)
	}

	app.opts.DetectorKind = "HTTP"
	app.opts.DetectorURL = "http://127.0.0.1:1/infer"
	d, err = app.newDetector()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*detection.HTTPDetector); !ok {
		t.Errorf("detector = %T, want *HTTPDetector", d)
	}
}
