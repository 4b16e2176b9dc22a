package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
name: edge-node
keystore: /var/lib/veilmesh/keys.db
transport:
  reassemblyTimeout: 60000000000
  announceBurst: 10
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "edge-node", cfg.Name)
	assert.Equal(t, "/var/lib/veilmesh/keys.db", cfg.Keystore)
	assert.Equal(t, time.Minute, cfg.Transport.ReassemblyTimeout)
	assert.Equal(t, 10, cfg.Transport.AnnounceBurst)

	// Fields absent from the file keep their defaults
	assert.Equal(t, 5*time.Minute, cfg.Transport.ReceiptHorizon)
	assert.Equal(t, 10*time.Minute, cfg.Transport.PathTTL)
	assert.Equal(t, 1.0, cfg.Transport.AnnounceRate)
	assert.Equal(t, 256, cfg.Transport.MaxInflight)
}

func TestLoadInterfaces(t *testing.T) {
	path := writeConfig(t, `
interfaces:
  - name: uplink
    type: tcp
    address: mesh.example.org:4242
  - name: lora0
    type: serial
    address: /dev/ttyUSB0
    options:
      baud: "115200"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	require.Len(t, cfg.Interfaces, 2)
	assert.Equal(t, "uplink", cfg.Interfaces[0].Name)
	assert.Equal(t, "tcp", cfg.Interfaces[0].Type)
	assert.Equal(t, "mesh.example.org:4242", cfg.Interfaces[0].Address)
	assert.Equal(t, "115200", cfg.Interfaces[1].Options["baud"])
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "name: [unterminated")

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestEmptyFileYieldsDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
