package config

import (
	"os"
	"path/filepath"
	"testing"

	lcerrors "github.com/geofix/location-core/errors"
	"github.com/geofix/location-core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadManifest_WhenInUseOnly(t *testing.T) {
	path := writeManifest(t, `
usage_descriptions:
  location_when_in_use: "Shows your position on the map."
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, types.LevelWhenInUse, m.RequiredAuthorizationLevel())
	assert.False(t, m.HasBackgroundLocationCapability())
	assert.Equal(t, "Shows your position on the map.", m.UsageDescription(types.LevelWhenInUse))
}

func TestLoadManifest_AlwaysWithBackgroundMode(t *testing.T) {
	path := writeManifest(t, `
usage_descriptions:
  location_when_in_use: "Shows your position."
  location_always: "Tracks your route in the background."
background_modes:
  - fetch
  - location
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, types.LevelAlways, m.RequiredAuthorizationLevel())
	assert.True(t, m.HasBackgroundLocationCapability())
	assert.Equal(t, "Tracks your route in the background.", m.UsageDescription(types.LevelAlways))
}

func TestLoadManifest_MissingUsageDescriptionsFailsFast(t *testing.T) {
	path := writeManifest(t, `
background_modes:
  - location
`)

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Equal(t, lcerrors.ConfigError, lcerrors.KindOf(err))
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest("/nonexistent/manifest.yaml")
	require.Error(t, err)
	assert.Equal(t, lcerrors.ConfigError, lcerrors.KindOf(err))
}

func TestUsageDescription_AlwaysFallsBackToWhenInUse(t *testing.T) {
	path := writeManifest(t, `
usage_descriptions:
  location_when_in_use: "Shows your position."
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "Shows your position.", m.UsageDescription(types.LevelAlways))
}
