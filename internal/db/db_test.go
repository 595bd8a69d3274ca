package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/config"
)

func TestDialect_Rebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		in      string
		want    string
	}{
		{
			name:    "sqlite keeps question marks",
			dialect: DialectSQLite,
			in:      "INSERT INTO t (a, b) VALUES (?, ?)",
			want:    "INSERT INTO t (a, b) VALUES (?, ?)",
		},
		{
			name:    "postgres numbers placeholders",
			dialect: DialectPostgres,
			in:      "INSERT INTO t (a, b) VALUES (?, ?)",
			want:    "INSERT INTO t (a, b) VALUES ($1, $2)",
		},
		{
			name:    "postgres no placeholders",
			dialect: DialectPostgres,
			in:      "SELECT 1",
			want:    "SELECT 1",
		},
		{
			name:    "postgres many placeholders keep order",
			dialect: DialectPostgres,
			in:      "UPDATE t SET a = ?, b = ? WHERE id = ?",
			want:    "UPDATE t SET a = $1, b = $2 WHERE id = $3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.Rebind(tt.in); got != tt.want {
				t.Errorf("Rebind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDialect_SerialPrimaryKey(t *testing.T) {
	if got := DialectSQLite.SerialPrimaryKey(); got != "INTEGER PRIMARY KEY AUTOINCREMENT" {
		t.Errorf("sqlite SerialPrimaryKey() = %q", got)
	}
	if got := DialectPostgres.SerialPrimaryKey(); got != "BIGSERIAL PRIMARY KEY" {
		t.Errorf("postgres SerialPrimaryKey() = %q", got)
	}
}

func TestBuildSQLiteDSN(t *testing.T) {
	t.Run("plain path gains pragmas", func(t *testing.T) {
		dir := t.TempDir()
		dsn, err := buildSQLiteDSN(filepath.Join(dir, "bridge.db"))
		if err != nil {
			t.Fatalf("buildSQLiteDSN: %v", err)
		}
		if !strings.HasPrefix(dsn, "file:") {
			t.Errorf("dsn = %q, want file: prefix", dsn)
		}
		for _, param := range []string{"_foreign_keys=on", "_busy_timeout=5000", "_journal_mode=WAL"} {
			if !strings.Contains(dsn, param) {
				t.Errorf("dsn = %q, missing %q", dsn, param)
			}
		}
	})

	t.Run("file prefix not double wrapped", func(t *testing.T) {
		dsn, err := buildSQLiteDSN("file:/tmp/app.db?cache=shared")
		if err != nil {
			t.Fatalf("buildSQLiteDSN: %v", err)
		}
		if strings.Count(dsn, "?") != 1 {
			t.Errorf("dsn = %q, want single query separator", dsn)
		}
		if !strings.Contains(dsn, "cache=shared") {
			t.Errorf("dsn = %q, lost caller params", dsn)
		}
	})
}

func TestOpen_SQLite(t *testing.T) {
	cfg := config.Config{
		Driver:       "sqlite3",
		Path:         filepath.Join(t.TempDir(), "open.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	database, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	defer func() { _ = Close(database) }()

	if database.Dialect != DialectSQLite {
		t.Errorf("Dialect = %q, want %q", database.Dialect, DialectSQLite)
	}
	var one int
	if err := database.QueryRow(`SELECT 1`).Scan(&one); err != nil {
		t.Fatalf("SELECT 1: %v", err)
	}
}

func TestOpen_SQLiteWithStatementLogging(t *testing.T) {
	cfg := config.Config{
		Driver:       "sqlite3",
		Path:         filepath.Join(t.TempDir(), "logged.db"),
		LogSQL:       true,
		MaxOpenConns: 1,
	}

	database, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	defer func() { _ = Close(database) }()

	var one int
	if err := database.QueryRow(`SELECT 1`).Scan(&one); err != nil {
		t.Fatalf("SELECT 1 through logging connector: %v", err)
	}
}

func TestClose_NilSafe(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) = %v, want nil", err)
	}
}
