package mysql

import (
	"strings"
	"testing"
	"time"
)

func TestDSN(t *testing.T) {
	cfg := Config{
		Host:         "db",
		Port:         3306,
		User:         "bank",
		Password:     "secret",
		DBName:       "ledger",
		DialTimeout:  3 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, "bank:secret@tcp(db:3306)/ledger?") {
		t.Fatalf("dsn = %s", dsn)
	}
	for _, want := range []string{"parseTime=True", "loc=UTC", "charset=utf8mb4", "timeout=3s", "readTimeout=5s", "writeTimeout=5s"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %s missing %s", dsn, want)
		}
	}
}

func TestDSNWithoutTimeouts(t *testing.T) {
	cfg := Config{Host: "localhost", Port: 3306, User: "root", DBName: "ledger"}
	if dsn := cfg.DSN(); strings.Contains(dsn, "timeout") {
		t.Errorf("dsn %s must not set timeouts", dsn)
	}
}
