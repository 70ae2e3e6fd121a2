package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/gipvcs/gip/pkg/store"
)

// Config is the gip CLI configuration, read from a TOML file. Every field
// has a working default, so the file is optional.
type Config struct {
	// APIURL is the IPFS daemon API address.
	APIURL string `toml:"api_url"`

	// TimeoutSeconds bounds each daemon request. IPNS resolution can take
	// tens of seconds on the real network, so the default is generous.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

func defaultConfig() Config {
	return Config{
		APIURL:         store.DefaultAPIURL,
		TimeoutSeconds: 120,
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gip", "config.toml")
}

// loadConfig reads the config file at path, or the default location when
// path is empty. A missing file at the default location is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return cfg, nil
		}
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logrus.WithField("keys", undecoded).Warn("unknown config keys ignored")
	}
	return cfg, nil
}

// openStore builds the daemon client from flags and config. The --api flag
// wins over the config file.
func openStore() (store.Store, error) {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	api := cfg.APIURL
	if flagAPI != "" {
		api = flagAPI
	}
	return store.NewClient(api, time.Duration(cfg.TimeoutSeconds)*time.Second)
}
