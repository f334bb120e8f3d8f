// Package mysql registers the "mysql" backend, built on go-sql-driver/mysql.
package mysql

import (
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/halcyonnouveau/estoult/pkg/backends/sqlconn"
	"github.com/halcyonnouveau/estoult/pkg/pool"
)

// DefaultDialTimeout applies when the DSN sets no timeout of its own.
const DefaultDialTimeout = 10 * time.Second

func init() {
	pool.Register("mysql", pool.Backend{
		Dialect: pool.MySQLDialect{},
		NewConnector: func(dsn string) (pool.Connector, error) {
			return NewConnector(dsn)
		},
	})
}

// NewConnector parses dsn ("user:password@tcp(host:3306)/dbname?parseTime=true")
// and returns a Connector whose sessions answer pings.
func NewConnector(dsn string) (*sqlconn.Connector, error) {
	config, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	return NewConnectorFromConfig(config)
}

// NewConnectorFromConfig builds a Connector from a driver config.
func NewConnectorFromConfig(config *mysql.Config) (*sqlconn.Connector, error) {
	if config.Timeout == 0 {
		config.Timeout = DefaultDialTimeout
	}

	connector, err := mysql.NewConnector(config)
	if err != nil {
		return nil, err
	}

	return sqlconn.OpenDB(connector), nil
}
