package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"camerafeed/internal/domain"
)

// Config is the root configuration document, loaded from YAML at startup and
// handed to the rest of the process as structured data.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Cameras []CameraConfig `yaml:"cameras"`
	WebRTC  WebRTCConfig   `yaml:"webrtc"`
}

// ServerConfig configures the signaling listener.
type ServerConfig struct {
	Port uint16 `yaml:"port"`
	Bind string `yaml:"bind"`
}

// CameraConfig is the on-disk shape of one camera entry.
type CameraConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	URI     string `yaml:"uri"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`
	Bitrate int    `yaml:"bitrate"`
	Encoder string `yaml:"encoder"`
}

// WebRTCConfig configures ICE and admission behavior.
type WebRTCConfig struct {
	STUNServer string `yaml:"stun_server"`
	MaxClients int    `yaml:"max_clients"`
	MTU        int    `yaml:"mtu"`
}

const (
	defaultPort       = 8554
	defaultBind       = "0.0.0.0"
	defaultWidth      = 1280
	defaultHeight     = 720
	defaultFPS        = 30
	defaultBitrate    = 2000
	defaultMaxClients = 3
	defaultMTU        = 1200
)

// Load reads and validates the YAML configuration file at path.
//
// Validation is fail-fast: a config with zero cameras, an unknown camera
// type, or a duplicate camera id is rejected before anything downstream is
// constructed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if c.WebRTC.MaxClients == 0 {
		c.WebRTC.MaxClients = defaultMaxClients
	}
	if c.WebRTC.MTU == 0 {
		c.WebRTC.MTU = defaultMTU
	}

	for i := range c.Cameras {
		cam := &c.Cameras[i]
		if cam.Width == 0 {
			cam.Width = defaultWidth
		}
		if cam.Height == 0 {
			cam.Height = defaultHeight
		}
		if cam.FPS == 0 {
			cam.FPS = defaultFPS
		}
		if cam.Bitrate == 0 {
			cam.Bitrate = defaultBitrate
		}
		if cam.Encoder == "" {
			cam.Encoder = string(domain.EncoderSoftware)
		}
	}
}

func (c *Config) validate() error {
	if len(c.Cameras) == 0 {
		return fmt.Errorf("no cameras configured")
	}

	seen := make(map[string]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera entry missing id")
		}
		if seen[cam.ID] {
			return fmt.Errorf("duplicate camera id %q", cam.ID)
		}
		seen[cam.ID] = true

		if _, err := parseCameraKind(cam.Type); err != nil {
			return fmt.Errorf("camera %q: %w", cam.ID, err)
		}
		if _, err := parseEncoder(cam.Encoder); err != nil {
			return fmt.Errorf("camera %q: %w", cam.ID, err)
		}
		if cam.URI == "" {
			return fmt.Errorf("camera %q: uri is required", cam.ID)
		}
	}

	if c.WebRTC.MaxClients < 0 {
		return fmt.Errorf("webrtc.max_clients must be >= 0")
	}

	return nil
}

func parseCameraKind(s string) (domain.CameraKind, error) {
	switch domain.CameraKind(strings.ToLower(s)) {
	case domain.CameraRTSP:
		return domain.CameraRTSP, nil
	case domain.CameraUSB:
		return domain.CameraUSB, nil
	case domain.CameraTest:
		return domain.CameraTest, nil
	default:
		return "", fmt.Errorf("unknown camera type %q", s)
	}
}

func parseEncoder(s string) (domain.Encoder, error) {
	switch domain.Encoder(strings.ToLower(s)) {
	case domain.EncoderSoftware:
		return domain.EncoderSoftware, nil
	case domain.EncoderVAAPI:
		return domain.EncoderVAAPI, nil
	default:
		return "", fmt.Errorf("unknown encoder %q", s)
	}
}

// Descriptors converts the validated on-disk camera entries into the
// immutable runtime CameraDescriptor values the rest of the system consumes.
func (c *Config) Descriptors() []domain.CameraDescriptor {
	out := make([]domain.CameraDescriptor, 0, len(c.Cameras))
	for _, cam := range c.Cameras {
		kind, _ := parseCameraKind(cam.Type)
		enc, _ := parseEncoder(cam.Encoder)
		out = append(out, domain.CameraDescriptor{
			ID:            cam.ID,
			Name:          cam.Name,
			Kind:          kind,
			SourceLocator: cam.URI,
			Width:         cam.Width,
			Height:        cam.Height,
			FPS:           cam.FPS,
			BitrateKbps:   cam.Bitrate,
			Encoder:       enc,
		})
	}
	return out
}
