// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads an optional YAML file for both binaries, via
// spf13/viper. The CLI flag values are passed in as defaults and any key
// present in the file replaces them, including flags given explicitly on
// the command line. A missing config file is not an error — flags and
// built-in defaults apply unchanged.
package config

import (
	"errors"
	"io/fs"

	"github.com/spf13/viper"
)

// Server holds the subset of server tunables a deployment may want to pin
// in a config file rather than pass as flags every time.
type Server struct {
	Port           int     `mapstructure:"port"`
	PlayerLimit    int     `mapstructure:"player_limit"`
	BotCount       int     `mapstructure:"bot_count"`
	TargetOrbCount int     `mapstructure:"target_orb_count"`
	MapWidth       float32 `mapstructure:"map_width"`
	MapHeight      float32 `mapstructure:"map_height"`
	StatusAddr     string  `mapstructure:"status_addr"`
}

// Client holds the subset of client tunables a config file may pin.
type Client struct {
	Server string `mapstructure:"server"`
	Name   string `mapstructure:"name"`
}

// LoadServer reads path (if non-empty and present) and returns Server
// overlaid on defaults. A missing file is tolerated; a malformed one is
// returned as an error.
func LoadServer(path string, defaults Server) (Server, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("port", defaults.Port)
	v.SetDefault("player_limit", defaults.PlayerLimit)
	v.SetDefault("bot_count", defaults.BotCount)
	v.SetDefault("target_orb_count", defaults.TargetOrbCount)
	v.SetDefault("map_width", defaults.MapWidth)
	v.SetDefault("map_height", defaults.MapHeight)
	v.SetDefault("status_addr", defaults.StatusAddr)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
				return Server{}, err
			}
		}
	}

	var out Server
	if err := v.Unmarshal(&out); err != nil {
		return Server{}, err
	}
	return out, nil
}

// LoadClient reads path the same way LoadServer does, for client defaults.
func LoadClient(path string, defaults Client) (Client, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("server", defaults.Server)
	v.SetDefault("name", defaults.Name)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
				return Client{}, err
			}
		}
	}

	var out Client
	if err := v.Unmarshal(&out); err != nil {
		return Client{}, err
	}
	return out, nil
}
