// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ffutop/modbus-master/master"
)

// Config defines the global configuration structure
type Config struct {
	Connection master.ConnectionConfig `mapstructure:"connection"`
	Log        LogConfig               `mapstructure:"log"`
	Poll       PollConfig              `mapstructure:"poll"`
	Image      ImageConfig             `mapstructure:"image"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// PollConfig defines the periodic reads of the poll command
type PollConfig struct {
	Units    string        `mapstructure:"units"` // "1", "1,2", "1-10"
	Interval time.Duration `mapstructure:"interval"`
	Reads    []ReadConfig  `mapstructure:"reads"`
}

// ReadConfig is one block read every poll cycle
type ReadConfig struct {
	Function int `mapstructure:"function"` // 1, 2, 3 or 4
	Address  int `mapstructure:"address"`
	Count    int `mapstructure:"count"`
}

// ImageConfig defines where polled values are kept
type ImageConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap"
	Path string `mapstructure:"path"` // File path for "file/mmap" type
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":         "log.level",
	"log-file":          "log.file",
	"connection-type":   "connection.connectionType",
	"port":              "connection.port",
	"baud-rate":         "connection.baudRate",
	"ip-address":        "connection.ipAddress",
	"eth-port":          "connection.ethport",
	"transmission-mode": "connection.transmissionMode",
	"resp-timeout":      "connection.respTimeout",
}

// Load loads configuration from configFile, or from the default search paths
// when it is empty. Flags of fs that were set on the command line override
// the file; fs may be nil.
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/modbus-master/")
		v.AddConfigPath("$HOME/.modbus-master")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("connection.transmissionMode", "RTU")
	v.SetDefault("connection.respTimeout", 1000)
	v.SetDefault("connection.charTimeout", 100)
	v.SetDefault("connection.maxResync", 1000)
	v.SetDefault("connection.rs485SettleDelay", 10)
	v.SetDefault("connection.dialTimeout", 2000)
	v.SetDefault("poll.interval", time.Second)
	v.SetDefault("image.type", "memory")

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// flags alone are enough when no file is found on the search path
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate / Fixups
	config.Connection.Normalize()
	config.Log.Level = strings.ToLower(config.Log.Level)
	config.Image.Type = strings.ToLower(config.Image.Type)
	if config.Poll.Interval <= 0 {
		config.Poll.Interval = time.Second
	}

	return &config, nil
}
