/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package sql

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/lib/pq"              // postgres driver
	"github.com/pkg/errors"

	"github.com/ortuman/mink/log"
)

const (
	maxOpenConns    = 16
	connMaxLifetime = time.Hour
)

// Config represents SQL storage configuration.
type Config struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	PoolSize int    `yaml:"pool_size"`
}

// Storage represents a SQL storage instance.
type Storage struct {
	db      *sql.DB
	driver  string
	builder sq.StatementBuilderType
}

// New initializes a SQL storage instance for a given driver
// ("mysql" or "postgres").
func New(driver string, cfg *Config) (*Storage, error) {
	var dsn string
	switch driver {
	case "mysql":
		dsn = fmt.Sprintf("%s:%s@tcp(%s)/%s", cfg.User, cfg.Password, cfg.Host, cfg.Database)
	case "postgres":
		dsn = fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", cfg.User, cfg.Password, cfg.Host, cfg.Database)
	default:
		return nil, fmt.Errorf("sql: unsupported driver: %s", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sql: opening connection")
	}
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = maxOpenConns
	}
	db.SetMaxOpenConns(poolSize)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "sql: pinging database")
	}
	log.Infof("connected to %s storage... host: %s", driver, cfg.Host)
	return newStorage(db, driver), nil
}

func newStorage(db *sql.DB, driver string) *Storage {
	s := &Storage{db: db, driver: driver, builder: sq.StatementBuilder}
	if driver == "postgres" {
		s.builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return s
}

// Close shuts down the underlying connection pool.
func (s *Storage) Close() error {
	return s.db.Close()
}
