/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package storage

import (
	"fmt"

	"github.com/ortuman/mink/storage/memstorage"
	sqlstorage "github.com/ortuman/mink/storage/sql"
)

// Type represents a storage manager type.
type Type int

const (
	// Memory represents an in memory storage.
	Memory Type = iota

	// MySQL represents a MySQL storage.
	MySQL

	// PostgreSQL represents a PostgreSQL storage.
	PostgreSQL
)

// Config represents a storage manager configuration.
type Config struct {
	Type Type
	SQL  *sqlstorage.Config
}

type configProxy struct {
	Type string             `yaml:"type"`
	SQL  *sqlstorage.Config `yaml:"sql"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := configProxy{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	switch p.Type {
	case "", "memory":
		c.Type = Memory
	case "mysql":
		c.Type = MySQL
	case "pgsql":
		c.Type = PostgreSQL
	default:
		return fmt.Errorf("storage.Config: unrecognized storage type: %s", p.Type)
	}
	if c.Type != Memory && p.SQL == nil {
		return fmt.Errorf("storage.Config: couldn't read SQL configuration")
	}
	c.SQL = p.SQL
	return nil
}

// New initializes the configured storage instance.
func New(cfg *Config) (Storage, error) {
	switch cfg.Type {
	case MySQL:
		return sqlstorage.New("mysql", cfg.SQL)
	case PostgreSQL:
		return sqlstorage.New("postgres", cfg.SQL)
	default:
		return memstorage.New(), nil
	}
}
