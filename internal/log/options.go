package log

import "github.com/spf13/pflag"

// Options contains configuration settings for the logger.
type Options struct {
	// Name is added as the logger name to each entry.
	Name string `json:"name,omitempty" mapstructure:"name"`

	// Level is the minimum level: debug, info, warn or error.
	Level string `json:"level,omitempty" mapstructure:"level"`

	// Format is console or json.
	Format string `json:"format,omitempty" mapstructure:"format"`

	// DisableCaller stops annotating entries with file and line.
	DisableCaller bool `json:"disable-caller,omitempty" mapstructure:"disable-caller"`

	// OutputPaths lists log sinks; "stdout" and "stderr" are accepted.
	OutputPaths []string `json:"output-paths,omitempty" mapstructure:"output-paths"`
}

// NewOptions returns Options with defaults.
func NewOptions() *Options {
	return &Options{
		Name:        "smarthome",
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{"stdout"},
	}
}

// AddFlags binds command-line flags to the Options fields.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum log level (debug, info, warn, error).")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log output format (console or json).")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Disable the caller field in logs.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Log output paths (stdout, stderr or files).")
}
