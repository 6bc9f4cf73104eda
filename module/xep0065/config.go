/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0065

import (
	"fmt"
)

const (
	defaultPortRangeFrom = 49152
	defaultPortRangeTo   = 65534
)

// Config represents SOCKS5 bytestreams configuration.
type Config struct {
	// PortRangeFrom and PortRangeTo bound the local listener port,
	// inclusive at both ends.
	PortRangeFrom int
	PortRangeTo   int

	// ProxyAllowed tells whether or not mediated transfers through
	// a bytestreams proxy are allowed.
	ProxyAllowed bool

	// Proxies holds user supplied proxy JIDs, queried in addition
	// to the ones discovered on the own server.
	Proxies []string

	// UseUPnP enables best effort router port mapping for direct
	// transfers behind NAT.
	UseUPnP bool
}

type configProxy struct {
	PortRangeFrom *int     `yaml:"port_range_from"`
	PortRangeTo   *int     `yaml:"port_range_to"`
	ProxyAllowed  bool     `yaml:"proxy_allowed"`
	Proxies       []string `yaml:"proxies"`
	UseUPnP       bool     `yaml:"use_upnp"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (cfg *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	from, to := defaultPortRangeFrom, defaultPortRangeTo
	if p.PortRangeFrom != nil {
		from = *p.PortRangeFrom
	}
	if p.PortRangeTo != nil {
		to = *p.PortRangeTo
	}
	cfg.PortRangeFrom = from
	cfg.PortRangeTo = to
	cfg.ProxyAllowed = p.ProxyAllowed
	cfg.Proxies = p.Proxies
	cfg.UseUPnP = p.UseUPnP
	return cfg.validate()
}

func (cfg *Config) validate() error {
	if cfg.PortRangeFrom < 0 || cfg.PortRangeTo > 65535 || cfg.PortRangeFrom > cfg.PortRangeTo {
		return fmt.Errorf("xep0065: invalid port range: [%d, %d]", cfg.PortRangeFrom, cfg.PortRangeTo)
	}
	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.PortRangeFrom == 0 && cfg.PortRangeTo == 0 {
		cfg.PortRangeFrom = defaultPortRangeFrom
		cfg.PortRangeTo = defaultPortRangeTo
	}
}
