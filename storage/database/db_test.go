package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cadence/academy/core"
)

func TestDSN(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database = core.DatabaseConfig{
		Engine:        "postgres",
		Host:          "db",
		Port:          "5432",
		Name:          "academy",
		User:          "app",
		Password:      "p@ss word",
		AdminUser:     "postgres",
		AdminPassword: "root",
	}

	tests := []struct {
		name       string
		dbName     string
		admin      bool
		disableTLS bool
		want       string
	}{
		{name: "app", dbName: "academy", want: "postgres://app:p%40ss%20word@db:5432/academy?sslmode=require&timezone=utc"},
		{name: "admin", dbName: "postgres", admin: true, want: "postgres://postgres:root@db:5432/postgres?sslmode=require&timezone=utc"},
		{name: "no tls", dbName: "academy", disableTLS: true, want: "postgres://app:p%40ss%20word@db:5432/academy?sslmode=disable&timezone=utc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf.Database.DisableTLS = tt.disableTLS
			assert.Equal(t, tt.want, DSN(conf, tt.dbName, tt.admin))
		})
	}

	// admin falls back to the app credentials
	conf.Database.AdminUser = ""
	conf.Database.DisableTLS = false
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/academy?sslmode=require&timezone=utc", DSN(conf, "academy", true))
}
