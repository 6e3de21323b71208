// Package config loads agesplit settings from defaults, an optional
// agesplit.yaml, AGESPLIT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eunmann/agesplit/pkg/delimiter"
	"github.com/eunmann/agesplit/pkg/membudget"
	"github.com/eunmann/agesplit/pkg/partition"
	"github.com/eunmann/agesplit/pkg/pipeline"
	"github.com/eunmann/agesplit/pkg/splitplan"
)

// EnvPrefix is prepended to every environment variable, e.g.
// AGESPLIT_CHUNK_SIZE or AGESPLIT_LOG_DEBUG.
const EnvPrefix = "AGESPLIT"

// ConfigFlag names the flag that points at an explicit config file.
const ConfigFlag = "config"

// Config is the resolved run and server configuration.
type Config struct {
	DateColumn       string   `mapstructure:"date_column"`
	ChunkSize        int      `mapstructure:"chunk_size"`
	Delimiter        string   `mapstructure:"delimiter"`
	Candidates       []string `mapstructure:"candidates"`
	OutputDelimiter  string   `mapstructure:"output_delimiter"`
	Prefix           string   `mapstructure:"prefix"`
	KeepAge          bool     `mapstructure:"keep_age"`
	AgeColumn        string   `mapstructure:"age_column"`
	Reference        string   `mapstructure:"reference"`
	Timezone         string   `mapstructure:"timezone"`
	Plan             string   `mapstructure:"plan"`
	MaxInput         string   `mapstructure:"max_input"`
	CompressionLevel int      `mapstructure:"compression_level"`

	Log   LogConfig   `mapstructure:"log"`
	Serve ServeConfig `mapstructure:"serve"`
}

// LogConfig controls logger level and output format.
type LogConfig struct {
	Debug bool `mapstructure:"debug"`
	Human bool `mapstructure:"human"`
}

// ServeConfig holds HTTP server settings.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DateColumn: "joindate",
		ChunkSize:  50000,
		Delimiter:  "auto",
		AgeColumn:  partition.DefaultAgeColumn,
		Timezone:   "Local",
		Serve:      ServeConfig{Addr: ":8080"},
	}
}

// flagKeys maps flag names to config keys. Flags missing from the set
// passed to Load are skipped.
var flagKeys = map[string]string{
	"date-column":       "date_column",
	"chunk-size":        "chunk_size",
	"delimiter":         "delimiter",
	"candidates":        "candidates",
	"output-delimiter":  "output_delimiter",
	"prefix":            "prefix",
	"keep-age":          "keep_age",
	"age-column":        "age_column",
	"reference":         "reference",
	"timezone":          "timezone",
	"plan":              "plan",
	"max-input":         "max_input",
	"compression-level": "compression_level",
	"debug":             "log.debug",
	"human":             "log.human",
	"addr":              "serve.addr",
}

// Load resolves the configuration. Precedence, lowest first: defaults,
// config file, environment, flags that were set explicitly. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, &cfg)

	explicit := ""
	if flags != nil {
		if f := flags.Lookup(ConfigFlag); f != nil {
			explicit = f.Value.String()
		}
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", explicit, err)
		}
	} else {
		v.SetConfigName("agesplit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("date_column", cfg.DateColumn)
	v.SetDefault("chunk_size", cfg.ChunkSize)
	v.SetDefault("delimiter", cfg.Delimiter)
	v.SetDefault("age_column", cfg.AgeColumn)
	v.SetDefault("timezone", cfg.Timezone)
	v.SetDefault("serve.addr", cfg.Serve.Addr)
}

// bindEnvs registers every mapstructure key in cfg so Unmarshal sees
// environment values for keys that have no default or file entry.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := range typ.NumField() {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts[:len(parts):len(parts)], tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", pipeline.ErrConfig, c.Timezone, err)
	}
	return loc, nil
}

// ReferenceDate returns midnight of the configured reference date, or of
// now's calendar day when no reference is set, in the configured zone.
func (c *Config) ReferenceDate(now time.Time) (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	if c.Reference == "" {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	ref, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(c.Reference), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: reference %q: want YYYY-MM-DD", pipeline.ErrConfig, c.Reference)
	}
	return ref, nil
}

// Budget resolves max_input into an input budget.
func (c *Config) Budget() (*membudget.Budget, error) {
	b, err := membudget.Resolve(c.MaxInput)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
	}
	return b, nil
}

// Pipeline builds the run configuration. subs are "chunk=size" overrides
// that take precedence over the plan file.
func (c *Config) Pipeline(now time.Time, subs []string) (pipeline.Config, error) {
	in, _, err := delimiter.Parse(c.Delimiter)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
	}
	var det *delimiter.Detector
	if len(c.Candidates) > 0 {
		runes, err := delimiter.ParseCandidates(c.Candidates)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("%w: candidates: %w", pipeline.ErrConfig, err)
		}
		det = delimiter.DefaultDetector()
		det.Candidates = runes
	}
	var out rune
	if c.OutputDelimiter != "" {
		r, auto, err := delimiter.Parse(c.OutputDelimiter)
		if err != nil {
			return pipeline.Config{}, fmt.Errorf("%w: output %w", pipeline.ErrConfig, err)
		}
		if !auto {
			out = r
		}
	}

	ref, err := c.ReferenceDate(now)
	if err != nil {
		return pipeline.Config{}, err
	}

	var plan *splitplan.Plan
	if c.Plan != "" {
		if plan, err = splitplan.Load(c.Plan); err != nil {
			return pipeline.Config{}, fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
		}
	}
	flagOverrides, err := splitplan.ParseFlags(subs)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("%w: %w", pipeline.ErrConfig, err)
	}

	return pipeline.Config{
		DateColumn:       strings.TrimSpace(c.DateColumn),
		ChunkSize:        c.ChunkSize,
		Overrides:        plan.Merge(flagOverrides),
		Delimiter:        in,
		Detector:         det,
		OutputDelimiter:  out,
		Prefix:           c.Prefix,
		Shape:            partition.Shape{KeepAge: c.KeepAge, AgeColumn: c.AgeColumn},
		Reference:        ref,
		CompressionLevel: c.CompressionLevel,
	}, nil
}
