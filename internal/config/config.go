// Package config handles converter configuration loading and
// management.
package config

// Config holds all converter settings.
type Config struct {
	Convert ConvertConfig `yaml:"convert"`
	Paths   PathsConfig   `yaml:"paths"`
	Logging LoggingConfig `yaml:"logging"`
}

// ConvertConfig holds the geometry and codec knobs.
type ConvertConfig struct {
	// Dialect selects the binary layout: "k1" or "k2".
	Dialect string `yaml:"dialect"`
	// WeldTolerance is the distance under which vertices merge when
	// reading the text form.
	WeldTolerance float32 `yaml:"weld_tolerance"`
	// AreaWeight/AngleWeight select the vertex normal weighting.
	AreaWeight  bool `yaml:"area_weight"`
	AngleWeight bool `yaml:"angle_weight"`
	// CreaseAngleDeg splits normals across edges sharper than this
	// angle; zero disables the crease gate.
	CreaseAngleDeg float32 `yaml:"crease_angle_deg"`
}

// PathsConfig holds filesystem settings.
type PathsConfig struct {
	// SupermodelDirs are searched, in order, for supermodel files
	// referenced by models being converted.
	SupermodelDirs []string `yaml:"supermodel_dirs"`
	// OutputDir receives converted files; empty writes next to the
	// input.
	OutputDir string `yaml:"output_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Convert: ConvertConfig{
			Dialect:       "k1",
			WeldTolerance: 1e-4,
			AreaWeight:    true,
			AngleWeight:   true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
