/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package config

import (
	"bytes"
	"io/ioutil"

	"gopkg.in/yaml.v2"

	"github.com/ortuman/mink/module/xep0065"
	"github.com/ortuman/mink/module/xep0096"
	"github.com/ortuman/mink/storage"
	"github.com/ortuman/mink/stream"
)

// Config aggregates every engine configuration section.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Stream   stream.Config  `yaml:"stream"`
	Storage  storage.Config `yaml:"storage"`
	Transfer xep0096.Config `yaml:"transfer"`
	SOCKS5   xep0065.Config `yaml:"socks5"`
}

// FromFile loads a configuration from a YAML file.
func FromFile(configFile string, cfg *Config) error {
	b, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}
	return FromBuffer(bytes.NewBuffer(b), cfg)
}

// FromBuffer loads a configuration from a YAML buffer.
func FromBuffer(buf *bytes.Buffer, cfg *Config) error {
	if err := yaml.Unmarshal(buf.Bytes(), cfg); err != nil {
		return err
	}
	if len(cfg.LogLevel) == 0 {
		cfg.LogLevel = "info"
	}
	return nil
}
