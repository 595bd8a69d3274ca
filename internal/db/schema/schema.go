// Package schema converges the live database toward the bridge's expected
// layout. Convergence is additive only: missing tables, columns and indexes
// are created, existing ones are never altered or dropped, so stores
// populated by earlier builds keep their rows and gain the new columns.
package schema

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/db"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/types"
)

type column struct {
	name    string
	typ     string
	notNull bool
	check   string
}

type table struct {
	name    string
	columns []column
}

type index struct {
	name   string
	table  string
	column string
}

func tables() []table {
	return []table{
		{
			name: "readings",
			columns: []column{
				{name: "ts", typ: "TEXT", notNull: true},
				{name: "temperature_c", typ: "REAL", check: rangeCheck("temperature_c", types.TemperatureMin, types.TemperatureMax, true)},
				{name: "humidity_pct", typ: "REAL", check: rangeCheck("humidity_pct", types.HumidityMin, types.HumidityMax, true)},
				{name: "light_pct", typ: "REAL", notNull: true, check: rangeCheck("light_pct", types.LightPercentMin, types.LightPercentMax, false)},
				{name: "light_raw", typ: "INTEGER", notNull: true, check: rangeCheck("light_raw", types.LightRawMin, types.LightRawMax, false)},
				{name: "device_time", typ: "TEXT", notNull: true},
				{name: "comfort_level", typ: "TEXT"},
				{name: "sequence_number", typ: "INTEGER"},
			},
		},
		{
			name: "events",
			columns: []column{
				{name: "ts", typ: "TEXT", notNull: true},
				{name: "category", typ: "TEXT", notNull: true},
				{name: "description", typ: "TEXT", notNull: true},
			},
		},
		{
			name: "statistics",
			columns: []column{
				{name: "ts", typ: "TEXT", notNull: true},
				{name: "temperature_avg", typ: "REAL"},
				{name: "temperature_min", typ: "REAL"},
				{name: "temperature_max", typ: "REAL"},
				{name: "humidity_avg", typ: "REAL"},
				{name: "humidity_min", typ: "REAL"},
				{name: "humidity_max", typ: "REAL"},
				{name: "light_avg", typ: "REAL"},
				{name: "light_min", typ: "REAL"},
				{name: "light_max", typ: "REAL"},
				{name: "reading_count", typ: "INTEGER", notNull: true, check: "reading_count > 0"},
			},
		},
	}
}

func indexes() []index {
	return []index{
		{name: "idx_readings_ts", table: "readings", column: "ts"},
		{name: "idx_readings_comfort", table: "readings", column: "comfort_level"},
		{name: "idx_readings_sequence", table: "readings", column: "sequence_number"},
		{name: "idx_events_ts", table: "events", column: "ts"},
		{name: "idx_statistics_ts", table: "statistics", column: "ts"},
	}
}

// Converge inspects the live schema and applies the statements needed to
// reach the expected layout. It returns a description of every statement
// applied; an up-to-date store yields none. Safe to run on every startup.
func Converge(database *db.DB) ([]string, error) {
	var applied []string

	existing, err := listTables(database)
	if err != nil {
		return nil, err
	}

	for _, t := range tables() {
		if !existing[t.name] {
			if _, err := database.Exec(createTableSQL(database.Dialect, t)); err != nil {
				return applied, fmt.Errorf("create table %s: %w", t.name, err)
			}
			applied = append(applied, "create table "+t.name)
			continue
		}

		cols, err := listColumns(database, t.name)
		if err != nil {
			return applied, err
		}
		for _, c := range t.columns {
			if cols[c.name] {
				continue
			}
			// ALTER TABLE ADD COLUMN cannot introduce NOT NULL on a
			// populated table, so late columns are always added nullable.
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", t.name, c.name, c.typ)
			if _, err := database.Exec(stmt); err != nil {
				return applied, fmt.Errorf("add column %s.%s: %w", t.name, c.name, err)
			}
			applied = append(applied, fmt.Sprintf("add column %s.%s", t.name, c.name))
		}
	}

	haveIdx, err := listIndexes(database)
	if err != nil {
		return applied, err
	}
	for _, ix := range indexes() {
		if haveIdx[ix.name] {
			continue
		}
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", ix.name, ix.table, ix.column)
		if _, err := database.Exec(stmt); err != nil {
			return applied, fmt.Errorf("create index %s: %w", ix.name, err)
		}
		applied = append(applied, "create index "+ix.name)
	}

	return applied, nil
}

func listTables(database *db.DB) (map[string]bool, error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`
	if database.Dialect == db.DialectPostgres {
		query = `SELECT tablename FROM pg_tables WHERE schemaname = current_schema()`
	}
	return queryNames(database, query, "list tables")
}

func listColumns(database *db.DB, tableName string) (map[string]bool, error) {
	if database.Dialect == db.DialectPostgres {
		query := database.Rebind(`SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?`)
		rows, err := database.Query(query, tableName)
		if err != nil {
			return nil, fmt.Errorf("list columns %s: %w", tableName, err)
		}
		return scanNames(rows, "list columns "+tableName)
	}

	// PRAGMA arguments cannot be bound; table names here are compile-time
	// constants from tables().
	rows, err := database.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, fmt.Errorf("list columns %s: %w", tableName, err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("list columns %s: %w", tableName, err)
		}
		names[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list columns %s: %w", tableName, err)
	}
	return names, nil
}

func listIndexes(database *db.DB) (map[string]bool, error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'index' AND name NOT LIKE 'sqlite_%'`
	if database.Dialect == db.DialectPostgres {
		query = `SELECT indexname FROM pg_indexes WHERE schemaname = current_schema()`
	}
	return queryNames(database, query, "list indexes")
}

func queryNames(database *db.DB, query, op string) (map[string]bool, error) {
	rows, err := database.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return scanNames(rows, op)
}

func scanNames(rows *sql.Rows, op string) (map[string]bool, error) {
	defer rows.Close()
	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		names[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return names, nil
}

func createTableSQL(d db.Dialect, t table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", t.name)
	fmt.Fprintf(&b, "\tid %s", d.SerialPrimaryKey())
	for _, c := range t.columns {
		b.WriteString(",\n\t")
		b.WriteString(c.name)
		b.WriteByte(' ')
		b.WriteString(c.typ)
		if c.notNull {
			b.WriteString(" NOT NULL")
		}
		if c.check != "" {
			b.WriteString(" CHECK (" + c.check + ")")
		}
	}
	b.WriteString("\n)")
	return b.String()
}

func rangeCheck(col string, min, max float64, nullable bool) string {
	lo := strconv.FormatFloat(min, 'f', -1, 64)
	hi := strconv.FormatFloat(max, 'f', -1, 64)
	expr := fmt.Sprintf("%s >= %s AND %s <= %s", col, lo, col, hi)
	if nullable {
		return fmt.Sprintf("%s IS NULL OR (%s)", col, expr)
	}
	return expr
}
