package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultServer    = "http://localhost:8080"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
	DefaultFPS       = 15
	DefaultCodec     = "json"
	DefaultTransport = TransportMesh
	DefaultSource    = "synthetic"

	DefaultAddr            = ":8080"
	DefaultMaxParticipants = 8
	DefaultRoomTTL         = 10 * time.Minute
)

// Transport names.
const (
	TransportMesh  = "mesh"
	TransportRelay = "relay"
)

// Config holds participant configuration.
type Config struct {
	// Server is the base URL of the session service.
	Server string  `yaml:"server"`
	UserID string  `yaml:"user_id"`
	FPS    float64 `yaml:"fps"`

	Codec     string `yaml:"codec"`     // json | msgpack
	Transport string `yaml:"transport"` // mesh | relay

	// ICE servers for the mesh transport.
	STUNServer string `yaml:"stun_server"`
	TURNServer string `yaml:"turn_server"`
	TURNUser   string `yaml:"turn_user"`
	TURNPass   string `yaml:"turn_pass"`
	ForceRelay bool   `yaml:"force_relay"`

	DropStaleFrames bool   `yaml:"drop_stale_frames"`
	PoseSource      string `yaml:"pose_source"` // synthetic | stdin | file:<path>
	SnapshotDir     string `yaml:"snapshot_dir"`
	Viewer          bool   `yaml:"viewer"`

	Serve ServeConfig `yaml:"serve"`
}

// ServeConfig holds session server configuration.
type ServeConfig struct {
	Addr            string        `yaml:"addr"`
	MaxParticipants int           `yaml:"max_participants"`
	RoomTTL         time.Duration `yaml:"room_ttl"`
}

// Options carries CLI flag overrides. Zero values mean "not set".
type Options struct {
	ConfigPath string

	Server     string
	UserID     string
	FPS        float64
	Codec      string
	Transport  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	DropStaleFrames bool
	PoseSource      string
	SnapshotDir     string
	Viewer          bool

	Addr            string
	MaxParticipants int
	RoomTTL         time.Duration
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:     DefaultServer,
		FPS:        DefaultFPS,
		Codec:      DefaultCodec,
		Transport:  DefaultTransport,
		STUNServer: DefaultSTUN,
		PoseSource: DefaultSource,
		Serve: ServeConfig{
			Addr:            DefaultAddr,
			MaxParticipants: DefaultMaxParticipants,
			RoomTTL:         DefaultRoomTTL,
		},
	}
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. YAML config file (--config or POSECAST_CONFIG)
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := Default()

	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv("POSECAST_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyOptions(opts)

	if cfg.UserID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate user id: %w", err)
		}
		cfg.UserID = id.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server, "POSECAST_SERVER")
	setString(&c.UserID, "POSECAST_USER_ID")
	setString(&c.Codec, "POSECAST_CODEC")
	setString(&c.Transport, "POSECAST_TRANSPORT")
	setString(&c.STUNServer, "STUN_SERVER")
	setString(&c.TURNServer, "TURN_SERVER")
	setString(&c.TURNUser, "TURN_USERNAME")
	setString(&c.TURNPass, "TURN_PASSWORD")

	if v := os.Getenv("POSECAST_FPS"); v != "" {
		fps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("POSECAST_FPS: %w", err)
		}
		c.FPS = fps
	}

	if v := os.Getenv("PORT"); v != "" {
		c.Serve.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("POSECAST_MAX_PARTICIPANTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("POSECAST_MAX_PARTICIPANTS: %w", err)
		}
		c.Serve.MaxParticipants = n
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func (c *Config) applyOptions(o Options) {
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&c.Server, o.Server)
	override(&c.UserID, o.UserID)
	override(&c.Codec, o.Codec)
	override(&c.Transport, o.Transport)
	override(&c.STUNServer, o.STUNServer)
	override(&c.TURNServer, o.TURNServer)
	override(&c.TURNUser, o.TURNUser)
	override(&c.TURNPass, o.TURNPass)
	override(&c.PoseSource, o.PoseSource)
	override(&c.SnapshotDir, o.SnapshotDir)
	override(&c.Serve.Addr, o.Addr)

	if o.FPS != 0 {
		c.FPS = o.FPS
	}
	if o.MaxParticipants != 0 {
		c.Serve.MaxParticipants = o.MaxParticipants
	}
	if o.RoomTTL != 0 {
		c.Serve.RoomTTL = o.RoomTTL
	}
	c.ForceRelay = c.ForceRelay || o.ForceRelay
	c.DropStaleFrames = c.DropStaleFrames || o.DropStaleFrames
	c.Viewer = c.Viewer || o.Viewer
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	var errs []error
	if !(c.FPS > 0) || math.IsInf(c.FPS, 0) {
		errs = append(errs, fmt.Errorf("fps must be a positive number, got %v", c.FPS))
	}
	switch strings.ToLower(c.Codec) {
	case "json", "msgpack":
	default:
		errs = append(errs, fmt.Errorf("unknown codec %q (want json or msgpack)", c.Codec))
	}
	switch c.Transport {
	case TransportMesh, TransportRelay:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q (want mesh or relay)", c.Transport))
	}
	if u, err := url.Parse(c.Server); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server must be an http(s) URL, got %q", c.Server))
	}
	if c.Serve.MaxParticipants <= 0 {
		errs = append(errs, fmt.Errorf("max_participants must be > 0"))
	}
	if c.Serve.RoomTTL <= 0 {
		errs = append(errs, fmt.Errorf("room_ttl must be > 0"))
	}
	return errors.Join(errs...)
}

// WebSocketURL returns the signaling endpoint derived from Server.
func (c *Config) WebSocketURL() string {
	u, err := url.Parse(c.Server)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns the TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
