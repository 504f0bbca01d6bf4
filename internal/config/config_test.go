package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string `help:"Config file path"`

	BrokerHost    string   `toml:"broker.host" env:"BROKER_HOST"`
	BrokerPort    int      `toml:"broker.port" env:"BROKER_PORT"`
	Concurrent    bool     `toml:"capture.concurrent" env:"CAPTURE_CONCURRENT"`
	MinConfidence float64  `toml:"detector.min_confidence" env:"DETECTOR_MIN_CONFIDENCE"`
	Labels        []string `toml:"detector.labels" env:"DETECTOR_LABELS"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeFile(t, "camwatch.toml", `
[broker]
host = "127.0.0.1"
port = 6000

[capture]
concurrent = true

[detector]
min_confidence = 0.5
labels = ["person", "car"]
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.BrokerHost != "127.0.0.1" {
		t.Errorf("BrokerHost = %q, want 127.0.0.1", opts.BrokerHost)
	}
	if opts.BrokerPort != 6000 {
		t.Errorf("BrokerPort = %d, want 6000", opts.BrokerPort)
	}
	if !opts.Concurrent {
		t.Error("Concurrent = false, want true")
	}
	if opts.MinConfidence != 0.5 {
		t.Errorf("MinConfidence = %v, want 0.5", opts.MinConfidence)
	}
	if want := []string{"person", "car"}; !reflect.DeepEqual(opts.Labels, want) {
		t.Errorf("Labels = %v, want %v", opts.Labels, want)
	}
}

func TestLoadConfigIntegerIntoFloat(t *testing.T) {
	path := writeFile(t, "camwatch.toml", "[detector]\nmin_confidence = 1\n")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.MinConfidence != 1 {
		t.Errorf("MinConfidence = %v, want 1", opts.MinConfidence)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("CAMWATCH_BROKER_HOST", "0.0.0.0")
	t.Setenv("CAMWATCH_BROKER_PORT", "5555")
	t.Setenv("CAMWATCH_CAPTURE_CONCURRENT", "true")
	t.Setenv("CAMWATCH_DETECTOR_MIN_CONFIDENCE", "0.25")
	t.Setenv("CAMWATCH_DETECTOR_LABELS", "dog, cat")

	opts := &testOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.BrokerHost != "0.0.0.0" || opts.BrokerPort != 5555 {
		t.Errorf("broker = %s:%d, want 0.0.0.0:5555", opts.BrokerHost, opts.BrokerPort)
	}
	if !opts.Concurrent {
		t.Error("Concurrent = false, want true")
	}
	if opts.MinConfidence != 0.25 {
		t.Errorf("MinConfidence = %v, want 0.25", opts.MinConfidence)
	}
	if want := []string{"dog", "cat"}; !reflect.DeepEqual(opts.Labels, want) {
		t.Errorf("Labels = %v, want %v", opts.Labels, want)
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	path := writeFile(t, "camwatch.toml", "[broker]\nport = 6000\nhost = \"10.0.0.1\"\n")
	t.Setenv("CAMWATCH_BROKER_PORT", "7000")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.BrokerPort != 7000 {
		t.Errorf("BrokerPort = %d, want env value 7000", opts.BrokerPort)
	}
	if opts.BrokerHost != "10.0.0.1" {
		t.Errorf("BrokerHost = %q, want toml value", opts.BrokerHost)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	path := writeFile(t, "camwatch.toml", "[broker]\nport = 6000\n")
	t.Setenv("CAMWATCH_BROKER_PORT", "7000")

	opts := &testOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&opts.BrokerPort, "broker-port", 5555, "")
	if err := cmd.Flags().Set("broker-port", "8000"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.BrokerPort != 8000 {
		t.Errorf("BrokerPort = %d, want flag value 8000", opts.BrokerPort)
	}
}

func TestLoadConfigBadEnvValue(t *testing.T) {
	t.Setenv("CAMWATCH_BROKER_PORT", "not-a-number")

	if err := LoadConfig(&testOptions{}, nil); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Fatal("expected error for non-pointer options")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "missing.toml")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeFile(t, "camwatch.toml", "[broker\nport = \n")
	if err := LoadConfig(&testOptions{Config: path}, nil); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":          "port",
		"BrokerPort":    "broker-port",
		"MinConfidence": "min-confidence",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"broker": map[string]any{"port": int64(5555)},
		"top":    "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"broker.port", int64(5555)},
		{"top", "value"},
		{"broker.missing", nil},
		{"top.nested", nil},
		{"missing.port", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSetFieldValueTypeMismatch(t *testing.T) {
	var opts testOptions
	field := reflect.ValueOf(&opts).Elem().FieldByName("BrokerPort")
	if err := setFieldValue(field, "5555"); err == nil {
		t.Error("expected error assigning string to int field")
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeFile(t, "camwatch.toml", `
[logging]
level = "warn"
format = "json"
capture = "debug"
broadcast = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("level/format = %s/%s, want warn/json", cfg.Level, cfg.Format)
	}
	want := map[string]string{"capture": "debug", "broadcast": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}

	if def := LoadLoggingConfig(""); def.Level != "info" || def.Format != "text" {
		t.Errorf("defaults = %s/%s, want info/text", def.Level, def.Format)
	}
}
