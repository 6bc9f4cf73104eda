/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package stream

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

const (
	defaultPort           = 5222
	defaultConnectTimeout = 15 * time.Second
	defaultKeepAlive      = 120 * time.Second
	defaultMaxStanzaSize  = 131072
)

// CertificateValidator validates the certificate chain presented by
// the server on TLS negotiation. Returning a non nil error aborts
// the handshake.
type CertificateValidator func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error

// Config represents an XMPP stream engine configuration.
type Config struct {
	Hostname string `yaml:"hostname"`
	Port     int    `yaml:"port"`

	// Domain is the XMPP service domain. Defaults to Hostname.
	Domain string `yaml:"domain"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Resource string `yaml:"resource"`

	// UseTLS tells whether or not STARTTLS negotiation is allowed.
	UseTLS bool `yaml:"tls"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	MaxStanzaSize  int           `yaml:"max_stanza_size"`

	// CertificateValidator overrides server certificate validation.
	// When left nil any certificate is accepted.
	CertificateValidator CertificateValidator `yaml:"-"`
}

type configProxy struct {
	Hostname       string        `yaml:"hostname"`
	Port           int           `yaml:"port"`
	Domain         string        `yaml:"domain"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Resource       string        `yaml:"resource"`
	UseTLS         bool          `yaml:"tls"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	MaxStanzaSize  int           `yaml:"max_stanza_size"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (cfg *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	if len(p.Hostname) == 0 {
		return fmt.Errorf("stream.Config: hostname value must be set")
	}
	cfg.Hostname = p.Hostname
	cfg.Port = p.Port
	cfg.Domain = p.Domain
	cfg.Username = p.Username
	cfg.Password = p.Password
	cfg.Resource = p.Resource
	cfg.UseTLS = p.UseTLS
	cfg.ConnectTimeout = p.ConnectTimeout
	cfg.KeepAlive = p.KeepAlive
	cfg.MaxStanzaSize = p.MaxStanzaSize
	cfg.applyDefaults()
	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if len(cfg.Domain) == 0 {
		cfg.Domain = cfg.Hostname
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if cfg.MaxStanzaSize == 0 {
		cfg.MaxStanzaSize = defaultMaxStanzaSize
	}
}

func (cfg *Config) tlsConfig() *tls.Config {
	tlsCfg := &tls.Config{
		ServerName:         cfg.Domain,
		InsecureSkipVerify: true,
	}
	if validator := cfg.CertificateValidator; validator != nil {
		tlsCfg.VerifyPeerCertificate = validator
	}
	return tlsCfg
}
