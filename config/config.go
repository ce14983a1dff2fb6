// Package config holds the DNSBunch configuration, loaded from a TOML
// file that is generated with defaults on first run.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/semihalev/zlog/v2"
)

const configver = "1.0.0"

// Config type
type Config struct {
	Version string

	// HTTP API surface.
	Bind            string
	CORSOrigins     []string
	ClientRateLimit int
	CSRFTokenTTL    Duration

	// Engine.
	Upstreams       []string
	TLDData         string
	QueryPort       int
	QueryTimeout    Duration
	CheckTimeout    Duration
	ReportTimeout   Duration
	SubsetTimeout   Duration
	MaxConcurrency  int
	PingNameservers bool

	LogLevel string

	sVersion string
}

// ServerVersion returns the build version the config was loaded with.
func (c *Config) ServerVersion() string {
	return c.sVersion
}

// Duration type
type Duration struct {
	time.Duration
}

// UnmarshalText for duration type
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

var defaultConfig = `
# Config version, config and build versions can be different.
version = "%s"

# Address to bind to for the http API server
bind = "127.0.0.1:8080"

# Origins allowed to call the API from a browser
corsorigins = [
"http://localhost:3000"
]

# Client ip address based ratelimit per minute, 0 for disabled
clientratelimit = 30

# Lifetime of issued CSRF tokens
csrftokenttl = "1h"

# Upstream recursive resolvers with port
upstreams = [
"8.8.8.8:53",
"1.1.1.1:53"
]

# Location of the IANA root zone data file produced by the TLD scraper
tlddata = "tld_data.json"

# Port used for directed queries to authoritative servers
queryport = 53

# Network timeout for each dns lookup in duration
querytimeout = "5s"

# Deadline for a single check
checktimeout = "30s"

# Deadline for a full report
reporttimeout = "120s"

# Deadline for a report when a specific check subset is requested
subsettimeout = "60s"

# Maximum concurrent dns queries inside a single check
maxconcurrency = 8

# Probe nameservers with icmp echo during the ns check
pingnameservers = true

# What kind of information should be logged, Log verbosity level [error,warn,info,debug]
loglevel = "info"
`

// Load loads the given config file, generating a default one when it
// does not exist yet.
func Load(cfgfile, version string) (*Config, error) {
	config := new(Config)

	if _, err := os.Stat(cfgfile); os.IsNotExist(err) {
		if err := generateConfig(cfgfile); err != nil {
			return nil, err
		}
	}

	zlog.Info("Loading config file", "path", cfgfile)

	if _, err := toml.DecodeFile(cfgfile, config); err != nil {
		return nil, fmt.Errorf("could not load config: %s", err)
	}

	if config.Version != configver {
		zlog.Warn("Config file is out of version, you can generate new one and check the changes.")
	}

	config.sVersion = version
	config.defaults()

	return config, nil
}

// New returns a config with defaults applied, used by tests and the
// one-shot CLI which run without a config file.
func New() *Config {
	c := new(Config)
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.QueryTimeout.Duration <= 0 {
		c.QueryTimeout.Duration = 5 * time.Second
	}
	if c.CheckTimeout.Duration <= 0 {
		c.CheckTimeout.Duration = 30 * time.Second
	}
	if c.ReportTimeout.Duration <= 0 {
		c.ReportTimeout.Duration = 120 * time.Second
	}
	if c.SubsetTimeout.Duration <= 0 {
		c.SubsetTimeout.Duration = 60 * time.Second
	}
	if c.CSRFTokenTTL.Duration <= 0 {
		c.CSRFTokenTTL.Duration = time.Hour
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 8
	}
	if c.QueryPort <= 0 {
		c.QueryPort = 53
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func generateConfig(path string) error {
	output, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not generate config: %s", err)
	}

	defer func() {
		err := output.Close()
		if err != nil {
			zlog.Warn("Config generation failed while file closing", "error", err.Error())
		}
	}()

	r := strings.NewReader(fmt.Sprintf(defaultConfig, configver))
	if _, err := io.Copy(output, r); err != nil {
		return fmt.Errorf("could not copy default config: %s", err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		zlog.Info("Default config file generated", "config", abs)
	}

	return nil
}
