package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrfchain/node/config"
)

func TestDefaultsValidate(t *testing.T) {
	assert.NoError(t, config.Defaults().Validate())
}

func TestValidateRejectsZeroListenPort(t *testing.T) {
	cfg := config.Defaults()
	cfg.ListenPort = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMaxBelowMin(t *testing.T) {
	cfg := config.Defaults()
	cfg.MinPeers = 10
	cfg.MaxConnections = 5
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsRewardedTopXOutOfRange(t *testing.T) {
	cfg := config.Defaults()
	cfg.SuperNodeCount = 10
	cfg.RewardedTopX = 11
	assert.Error(t, cfg.Validate())
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	cfg, err := config.LoadFile(config.Defaults(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), cfg)
}

func TestLoadFileOverlaysFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_port: 9000\nmin_peers: 7\n"), 0o644))

	cfg, err := config.LoadFile(config.Defaults(), path)
	require.NoError(t, err)
	assert.Equal(t, uint16(9000), cfg.ListenPort)
	assert.Equal(t, 7, cfg.MinPeers)
	assert.Equal(t, config.Defaults().MaxConnections, cfg.MaxConnections)
}
