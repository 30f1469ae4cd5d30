package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
cameras:
  - id: cam0
    name: Test Camera
    type: test
    uri: videotestsrc
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("port = %d, want %d", cfg.Server.Port, defaultPort)
	}
	if cfg.WebRTC.MaxClients != defaultMaxClients {
		t.Errorf("max_clients = %d, want %d", cfg.WebRTC.MaxClients, defaultMaxClients)
	}
	if cfg.Cameras[0].Width != defaultWidth {
		t.Errorf("width = %d, want %d", cfg.Cameras[0].Width, defaultWidth)
	}
	if cfg.Cameras[0].Encoder != "software" {
		t.Errorf("encoder = %q, want software", cfg.Cameras[0].Encoder)
	}
}

func TestLoadRejectsNoCameras(t *testing.T) {
	path := writeTempConfig(t, "server:\n  port: 9000\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for config with no cameras")
	}
}

func TestLoadRejectsUnknownCameraType(t *testing.T) {
	path := writeTempConfig(t, `
cameras:
  - id: cam0
    name: bad
    type: drone
    uri: x
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown camera type")
	}
}

func TestLoadRejectsDuplicateCameraID(t *testing.T) {
	path := writeTempConfig(t, `
cameras:
  - id: cam0
    name: a
    type: test
    uri: x
  - id: cam0
    name: b
    type: test
    uri: y
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for duplicate camera id")
	}
}

func TestDescriptorsRoundTrip(t *testing.T) {
	path := writeTempConfig(t, `
cameras:
  - id: cam0
    name: Test Camera
    type: rtsp
    uri: rtsp://example/cam
    encoder: vaapi
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	descs := cfg.Descriptors()
	if len(descs) != 1 {
		t.Fatalf("len(descs) = %d, want 1", len(descs))
	}
	if descs[0].ID != "cam0" || descs[0].SourceLocator != "rtsp://example/cam" {
		t.Errorf("unexpected descriptor: %+v", descs[0])
	}
	if descs[0].Encoder != "vaapi" {
		t.Errorf("encoder = %q, want vaapi", descs[0].Encoder)
	}
}
