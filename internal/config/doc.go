// Package config loads what copyset placement is configured with: the
// cluster-wide placement Settings, the topology (nodes configuration and the
// epoch metadata of each log) and the placementd process configuration.
//
// Files are YAML. Settings start from Defaults, are overlaid by the settings
// file and finally by COPYSET_* environment variables.
package config
