package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "nodename: base-1\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "base-1", cfg.NodeName)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "ezmesh.db", cfg.Database.Path)
	require.Equal(t, "tcp://localhost:1883", cfg.MQTT.BrokerURL)
	require.Equal(t, "meshcore", cfg.MQTT.TopicPrefix)
	require.Equal(t, time.Minute, cfg.MeshSettings.AnnounceInterval)
	require.Equal(t, 10*time.Millisecond, cfg.MeshSettings.TickInterval)
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
nodename: relay-7
loglevel: debug
database:
  path: /var/lib/ezmesh/node.db
mqtt:
  brokerurl: tcp://broker.example:1883
  embedded: true
  embeddedlisten: ":11883"
  topicprefix: mesh/test
  username: node
  password: hunter2
meshsettings:
  announceinterval: 30s
  tickinterval: 25ms
  channels:
    - name: "#ops"
      password: oncall
    - name: "#raw"
      key: "00112233445566778899aabbccddeeff"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "relay-7", cfg.NodeName)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "/var/lib/ezmesh/node.db", cfg.Database.Path)
	require.True(t, cfg.MQTT.Embedded)
	require.Equal(t, ":11883", cfg.MQTT.EmbeddedListen)
	require.Equal(t, 30*time.Second, cfg.MeshSettings.AnnounceInterval)
	require.Equal(t, 25*time.Millisecond, cfg.MeshSettings.TickInterval)

	require.Len(t, cfg.MeshSettings.Channels, 2)
	require.Equal(t, "#ops", cfg.MeshSettings.Channels[0].Name)
	require.Equal(t, "oncall", cfg.MeshSettings.Channels[0].Password)
	require.Empty(t, cfg.MeshSettings.Channels[0].Key)
	require.Equal(t, "#raw", cfg.MeshSettings.Channels[1].Name)
	require.Equal(t,
		ChannelKey{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		cfg.MeshSettings.Channels[1].Key)
}

func TestLoadRejectsBadKey(t *testing.T) {
	path := writeConfig(t, `
meshsettings:
  channels:
    - name: "#bad"
      key: "not hex"
`)
	_, err := Load(path)
	require.Error(t, err)

	path = writeConfig(t, `
meshsettings:
  channels:
    - name: "#short"
      key: "00112233"
`)
	_, err = Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
