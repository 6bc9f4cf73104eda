/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

const yamlDoc = `
log_level: debug
stream:
  hostname: xmpp.example
  tls: true
  username: alice
  password: s3cret
storage:
  type: memory
transfer:
  force_in_band: true
socks5:
  port_range_from: 52000
  port_range_to: 52010
  proxy_allowed: true
  proxies:
    - proxy.xmpp.example
`

func TestConfigFromBuffer(t *testing.T) {
	var cfg Config
	require.Nil(t, FromBuffer(bytes.NewBufferString(yamlDoc), &cfg))

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "xmpp.example", cfg.Stream.Hostname)
	require.Equal(t, 5222, cfg.Stream.Port) // defaulted
	require.Equal(t, "xmpp.example", cfg.Stream.Domain)
	require.True(t, cfg.Stream.UseTLS)
	require.True(t, cfg.Transfer.ForceIBB)
	require.Equal(t, 52000, cfg.SOCKS5.PortRangeFrom)
	require.Equal(t, 52010, cfg.SOCKS5.PortRangeTo)
	require.True(t, cfg.SOCKS5.ProxyAllowed)
	require.Equal(t, []string{"proxy.xmpp.example"}, cfg.SOCKS5.Proxies)
}

func TestConfigInvalidPortRange(t *testing.T) {
	var cfg Config
	doc := `
stream:
  hostname: xmpp.example
socks5:
  port_range_from: 52010
  port_range_to: 52000
`
	require.NotNil(t, FromBuffer(bytes.NewBufferString(doc), &cfg))
}

func TestConfigMissingHostname(t *testing.T) {
	var cfg Config
	require.NotNil(t, FromBuffer(bytes.NewBufferString("stream:\n  port: 5222\n"), &cfg))
}

func TestConfigFromFileNotFound(t *testing.T) {
	var cfg Config
	require.NotNil(t, FromFile("/tmp/does-not-exist.yml", &cfg))
}
