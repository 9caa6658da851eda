// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/tripdesk/tripdesk/internal/xdg"
)

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
}

// Load builds a Config from defaults, the YAML file at path and changed
// flags, in increasing precedence. An empty path means the XDG default,
// which may be absent; an explicit path must exist.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	switch {
	case err == nil:
		if err := ValidateDocument(data); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("operation", "load flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RegisterFlags adds the flags Load understands to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("http-addr", d.HTTP.Addr, "API listen address")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics/health listen address (empty = disabled)")
}
