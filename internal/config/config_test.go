package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	t.Setenv("PEERCALL_SECRET", "s3cret")
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "s3cret", cfg.Secret)
	assert.Equal(t, 2*time.Minute, cfg.CallTTL)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 20.0, cfg.RateLimit.RPS)
	assert.Equal(t, 40, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.Client.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Client.ConnectTimeout)
	assert.Len(t, cfg.Client.STUNServers, 3)
	assert.False(t, cfg.Client.MDNS)
}

func TestLoadFile_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
mode: debug
port: 9090
call_ttl: 90s
rate_limit:
  rps: 5
  burst: 10
client:
  server_url: http://signal.example:9090
  poll_interval: 250ms
  stun_servers:
    - stun:stun.example.org:3478
`)
	t.Setenv("PEERCALL_CLIENT_TOKEN", "tok")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.CallTTL)
	assert.Equal(t, 5.0, cfg.RateLimit.RPS)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, "http://signal.example:9090", cfg.Client.ServerURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Client.PollInterval)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, cfg.Client.STUNServers)
	assert.Equal(t, "tok", cfg.Client.Token)
}

func TestLoadFile_ReleaseNeedsSecret(t *testing.T) {
	path := writeConfig(t, "mode: release\n")
	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestLoadFile_RejectsBadValues(t *testing.T) {
	path := writeConfig(t, "mode: debug\nport: 70000\n")
	_, err := LoadFile(path)
	assert.Error(t, err)

	path = writeConfig(t, "mode: debug\ncall_ttl: 0s\n")
	_, err = LoadFile(path)
	assert.Error(t, err)
}
