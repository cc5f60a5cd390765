package config

import "flag"

// Overrides collects command-line overrides for a subcommand. Each
// tool registers the shared flags on its own FlagSet, then hands the
// filled struct to Load.
type Overrides struct {
	Config     string
	Debug      bool
	Dialect    string
	OutputDir  string
	Supermodel string
}

// Register binds the shared converter flags on fs.
func (o *Overrides) Register(fs *flag.FlagSet) {
	fs.StringVar(&o.Config, "config", "", "Path to config file")
	fs.BoolVar(&o.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&o.Dialect, "dialect", "", "Target binary dialect (k1 or k2)")
	fs.StringVar(&o.OutputDir, "out", "", "Output directory")
	fs.StringVar(&o.Supermodel, "supermodel-dir", "", "Extra supermodel search directory")
}

// apply applies the overrides to the config.
func (o *Overrides) apply(cfg *Config) {
	if o.Debug {
		cfg.Logging.Level = "debug"
	}
	if o.Dialect != "" {
		cfg.Convert.Dialect = o.Dialect
	}
	if o.OutputDir != "" {
		cfg.Paths.OutputDir = o.OutputDir
	}
	if o.Supermodel != "" {
		cfg.Paths.SupermodelDirs = append([]string{o.Supermodel}, cfg.Paths.SupermodelDirs...)
	}
}
