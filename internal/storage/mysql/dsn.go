// Package mysql provides the MySQL-backed storage.Repository. Registration
// with the storage factory happens in init.
package mysql

import (
	"maps"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"

	"svload/internal/config"
)

// DSN renders c as a go-sql-driver DSN:
//
//	user[:password]@tcp(host:port)/database[?params]
//
// A nil password omits the credential entirely. Values are not escaped.
func DSN(c config.Connection) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.User = c.User
	if c.Password != nil {
		cfg.Passwd = *c.Password
	}
	if len(c.Params) > 0 {
		cfg.Params = maps.Clone(c.Params)
	}
	return cfg.FormatDSN()
}

// JDBCURL renders c in the historical descriptor form:
//
//	jdbc:mysql://host:port/database?user=user[&password=pw]
//
// The password segment is absent when c.Password is nil.
func JDBCURL(c config.Connection) string {
	var b strings.Builder
	b.WriteString("jdbc:mysql://")
	b.WriteString(c.Host)
	b.WriteByte(':')
	b.WriteString(c.Port)
	b.WriteByte('/')
	b.WriteString(c.Database)
	b.WriteString("?user=")
	b.WriteString(c.User)
	if c.Password != nil {
		b.WriteString("&password=")
		b.WriteString(*c.Password)
	}
	return b.String()
}

// Describe is JDBCURL with the password masked, for logs.
func Describe(c config.Connection) string {
	return JDBCURL(c.Redacted())
}
