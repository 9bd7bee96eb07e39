package config

import (
	"fmt"

	"github.com/geofix/location-core/errors"
	"github.com/geofix/location-core/logger"
	"github.com/geofix/location-core/types"
	"github.com/spf13/viper"
)

// Manifest keys the host application must declare before it may ask for
// location access.
const (
	keyUsageWhenInUse  = "usage_descriptions.location_when_in_use"
	keyUsageAlways     = "usage_descriptions.location_always"
	keyBackgroundModes = "background_modes"

	backgroundModeLocation = "location"
)

// ManifestInspector reports what the host application's manifest declares
// about location usage. It implements types.CapabilityInspector.
type ManifestInspector struct {
	whenInUseDescription string
	alwaysDescription    string
	backgroundModes      []string
}

// LoadManifest reads the declared manifest at path. It fails when neither
// location usage description is present: that is a host misconfiguration
// under which no request could ever succeed, so it surfaces at startup
// instead of being deferred into a request result.
func LoadManifest(path string) (*ManifestInspector, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ConfigError, fmt.Sprintf("failed to read manifest %s", path))
	}

	m := &ManifestInspector{
		whenInUseDescription: v.GetString(keyUsageWhenInUse),
		alwaysDescription:    v.GetString(keyUsageAlways),
		backgroundModes:      v.GetStringSlice(keyBackgroundModes),
	}

	if m.whenInUseDescription == "" && m.alwaysDescription == "" {
		return nil, errors.ConfigInvalid(
			"manifest declares no location usage description",
			fmt.Sprintf("declare %s or %s in %s", keyUsageWhenInUse, keyUsageAlways, path),
		)
	}

	logger.GetLogger().Named("manifest").Infow("Loaded application manifest",
		"path", path,
		"requiredLevel", m.RequiredAuthorizationLevel(),
		"backgroundLocation", m.HasBackgroundLocationCapability(),
	)

	return m, nil
}

// RequiredAuthorizationLevel returns Always when the manifest declares an
// always-usage description, WhenInUse otherwise.
func (m *ManifestInspector) RequiredAuthorizationLevel() types.AuthorizationLevel {
	if m.alwaysDescription != "" {
		return types.LevelAlways
	}
	return types.LevelWhenInUse
}

// HasBackgroundLocationCapability reports whether the manifest lists
// location among its background modes.
func (m *ManifestInspector) HasBackgroundLocationCapability() bool {
	for _, mode := range m.backgroundModes {
		if mode == backgroundModeLocation {
			return true
		}
	}
	return false
}

// UsageDescription returns the declared description for a level, falling
// back to the when-in-use text for Always when no dedicated one exists.
func (m *ManifestInspector) UsageDescription(level types.AuthorizationLevel) string {
	if level == types.LevelAlways && m.alwaysDescription != "" {
		return m.alwaysDescription
	}
	return m.whenInUseDescription
}
