package main

import (
	"strings"

	"github.com/npillmayer/schuko"
	"github.com/npillmayer/schuko/gconf"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys.
const (
	keyConfig  = "config"
	keyTrace   = "trace"
	keyOut     = "out"
	keyPackage = "package"
	keyWatch   = "watch"
)

// config is the application configuration, backed by a private viper
// instance. It implements schuko.Configuration and is installed as the global
// configuration, which makes it visible to library packages through gconf.
type config struct {
	v *viper.Viper
}

var _ schuko.Configuration = (*config)(nil)

func newConfig() *config {
	v := viper.New()
	v.SetEnvPrefix("RULEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &config{v: v}
}

// InitDefaults is part of interface schuko.Configuration.
func (c *config) InitDefaults() {
	c.v.SetDefault("tracing", "go")
	c.v.SetDefault(keyTrace, "Error")
	c.v.SetDefault(keyOut, ".")
}

// load binds command line flags and reads the configuration file, if any.
// A missing default configuration file is not an error.
func (c *config) load(flags *pflag.FlagSet) error {
	if err := c.v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "cannot bind flags")
	}
	if file := c.v.GetString(keyConfig); file != "" {
		c.v.SetConfigFile(file)
	} else {
		c.v.SetConfigName(".rulegen")
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath(".")
		c.v.AddConfigPath("$HOME")
	}
	if err := c.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "cannot read configuration")
		}
		tracer().Debugf("no configuration file found")
	} else {
		tracer().Infof("using configuration file %s", c.v.ConfigFileUsed())
	}
	return nil
}

// IsSet is part of interface schuko.Configuration.
func (c *config) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// GetString is part of interface schuko.Configuration.
func (c *config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt is part of interface schuko.Configuration.
func (c *config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool is part of interface schuko.Configuration.
func (c *config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// IsInteractive is part of interface schuko.Configuration.
func (c *config) IsInteractive() bool {
	return false
}

// initTracing installs Go-log based tracers for all packages of rulegen and
// makes the configuration globally available.
func initTracing(c *config) {
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	gconf.Initialize(c)
	tracing.SetTraceSelector(tracing.SelectorForAdapter(gologadapter.GetAdapter()))
	level := tracing.TraceLevelFromString(c.GetString(keyTrace))
	tracer().SetTraceLevel(level)
	tracer().Infof("trace level is %s", level)
}
