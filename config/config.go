// Package config loads the copr client configuration from the standard
// copr config file (~/.config/copr, INI format, [copr-cli] section) with
// environment variable overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/eclipseo/copr/errors"
)

// DefaultCoprURL is the public Fedora Copr frontend, used when no config
// file exists or the file does not set copr_url.
const DefaultCoprURL = "https://copr.fedorainfracloud.org"

// section is the INI section the copr CLI family of tools reads.
const section = "copr-cli"

// Config holds the client configuration.
type Config struct {
	CoprURL  string
	Username string
	Login    string
	Token    string
	GSSAPI   bool
	// Encrypted requires the frontend URL to use https. It defaults to
	// true and exists only to allow plain http against local dev stacks.
	Encrypted bool
}

// DefaultPath returns the standard location of the copr config file.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "copr")
	}
	return filepath.Join(home, ".config", "copr")
}

// Load reads the config file at path (DefaultPath when empty), applies
// environment overrides, and validates the result. A missing file is not
// an error: it yields an anonymous config against the public frontend,
// matching the copr CLI behavior.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := &Config{CoprURL: DefaultCoprURL, Encrypted: true}

	if _, err := os.Stat(path); err == nil {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("ini")
		v.SetDefault(section+".encrypted", true)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.KindConfig, "bad configuration file")
		}
		cfg.Username = v.GetString(section + ".username")
		cfg.Login = v.GetString(section + ".login")
		cfg.Token = v.GetString(section + ".token")
		cfg.GSSAPI = v.GetBool(section + ".gssapi")
		cfg.Encrypted = v.GetBool(section + ".encrypted")
		if u := v.GetString(section + ".copr_url"); u != "" {
			cfg.CoprURL = u
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.KindConfig, "cannot read configuration file")
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values from the process environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("COPR_URL"); v != "" {
		c.CoprURL = v
	}
	if v := os.Getenv("COPR_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("COPR_LOGIN"); v != "" {
		c.Login = v
	}
	if v := os.Getenv("COPR_TOKEN"); v != "" {
		c.Token = v
	}
}

// Validate checks invariants that would otherwise surface as confusing
// request failures later.
func (c *Config) Validate() error {
	if c.CoprURL == "" {
		return errors.New(errors.KindConfig, "copr_url must not be empty")
	}
	if c.Encrypted && strings.HasPrefix(c.CoprURL, "http://") {
		return errors.New(errors.KindConfig,
			"the copr_url should not be http, please obtain an up-to-date configuration from the Copr website")
	}
	if (c.Login == "") != (c.Token == "") {
		return errors.New(errors.KindConfig, "login and token must be configured together")
	}
	return nil
}

// BaseURL returns the frontend URL without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.CoprURL, "/")
}

// HasToken reports whether API token credentials are configured.
func (c *Config) HasToken() bool {
	return c.Login != "" && c.Token != ""
}
