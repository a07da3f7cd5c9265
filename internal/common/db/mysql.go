package db

import (
	_ "github.com/go-sql-driver/mysql"
)

// NewMySQL opens a pooled MySQL connection.
// DSN format: "user:password@tcp(host:port)/dbname?parseTime=true&loc=UTC"
func NewMySQL(config *PoolConfig) (Database, error) {
	return open(DialectMySQL, config)
}
