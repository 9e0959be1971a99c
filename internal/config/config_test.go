package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"POSECAST_CONFIG", "POSECAST_SERVER", "POSECAST_USER_ID", "POSECAST_FPS",
		"POSECAST_CODEC", "POSECAST_TRANSPORT", "STUN_SERVER", "TURN_SERVER",
		"TURN_USERNAME", "TURN_PASSWORD", "PORT", "POSECAST_MAX_PARTICIPANTS",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "posecast.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FPS != 15 || cfg.Codec != "json" || cfg.Transport != TransportMesh || cfg.Server != DefaultServer {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Serve.MaxParticipants != 8 || cfg.Serve.RoomTTL != 10*time.Minute {
		t.Fatalf("serve defaults = %+v", cfg.Serve)
	}
	id, err := uuid.Parse(cfg.UserID)
	if err != nil || id.Version() != 7 {
		t.Fatalf("user id %q is not a UUIDv7", cfg.UserID)
	}
}

func TestPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server: http://file.example:8080
fps: 20
codec: msgpack
user_id: from-file
serve:
  room_ttl: 90s
  max_participants: 4
`)
	t.Setenv("POSECAST_CONFIG", path)
	t.Setenv("POSECAST_FPS", "25")
	t.Setenv("POSECAST_USER_ID", "from-env")

	cfg, err := Load(Options{UserID: "from-flag"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server != "http://file.example:8080" {
		t.Errorf("server = %q, want file value", cfg.Server)
	}
	if cfg.Codec != "msgpack" {
		t.Errorf("codec = %q, want file value", cfg.Codec)
	}
	if cfg.FPS != 25 {
		t.Errorf("fps = %v, want env value", cfg.FPS)
	}
	if cfg.UserID != "from-flag" {
		t.Errorf("user id = %q, want flag value", cfg.UserID)
	}
	if cfg.Serve.RoomTTL != 90*time.Second || cfg.Serve.MaxParticipants != 4 {
		t.Errorf("serve = %+v", cfg.Serve)
	}
	if cfg.Serve.Addr != DefaultAddr {
		t.Errorf("addr = %q, want default", cfg.Serve.Addr)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cases := map[string]Options{
		"fps":       {FPS: -1},
		"codec":     {Codec: "protobuf"},
		"transport": {Transport: "carrier-pigeon"},
		"server":    {Server: "localhost:8080"},
	}
	for name, opts := range cases {
		if _, err := Load(opts); err == nil || !strings.Contains(err.Error(), name) {
			t.Errorf("%s: err = %v", name, err)
		}
	}

	cfg, err := Load(Options{FPS: 0.5})
	if err != nil || cfg.FPS != 0.5 {
		t.Errorf("fractional fps: %v, %v", cfg, err)
	}

	for _, v := range []string{"fast", "Inf", "NaN"} {
		t.Setenv("POSECAST_FPS", v)
		if _, err := Load(Options{}); err == nil {
			t.Errorf("POSECAST_FPS=%s accepted", v)
		}
	}
}

func TestMissingConfigFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(Options{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatal("missing config file accepted")
	}
}

func TestWebSocketURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":       "ws://localhost:8080/ws",
		"https://pose.example.com/":   "wss://pose.example.com/ws",
		"https://pose.example.com/pc": "wss://pose.example.com/pc/ws",
	}
	for in, want := range cases {
		c := &Config{Server: in}
		if got := c.WebSocketURL(); got != want {
			t.Errorf("WebSocketURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestICEServers(t *testing.T) {
	c := Default()
	if len(c.GetTURNServers()) != 0 {
		t.Fatal("TURN configured by default")
	}
	c.TURNServer = "turn:relay.example"
	got := c.GetTURNServers()
	if len(got) != 2 || got[0] != "turn:relay.example:3478?transport=udp" {
		t.Fatalf("TURN servers = %v", got)
	}
}
