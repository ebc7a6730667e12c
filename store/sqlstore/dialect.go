package sqlstore

import (
	"embed"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Supported driver names, as registered with database/sql.
const (
	DriverSQLite3  = "sqlite3"  // github.com/mattn/go-sqlite3 (cgo)
	DriverSQLite   = "sqlite"   // modernc.org/sqlite (pure Go)
	DriverPostgres = "postgres" // github.com/lib/pq
)

type dialect struct {
	driver     string
	schemaFile string
	// numbered placeholders ($1, $2...) instead of ?
	numbered bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite3, DriverSQLite:
		return dialect{driver: driver, schemaFile: "schema/sqlite.sql"}, nil
	case DriverPostgres:
		return dialect{driver: driver, schemaFile: "schema/postgres.sql", numbered: true}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

// dsn adds the journal and busy-timeout settings each SQLite driver
// understands. Postgres sources are used as given.
func (d dialect) dsn(source string) string {
	sep := "?"
	if strings.Contains(source, "?") {
		sep = "&"
	}
	switch d.driver {
	case DriverSQLite3:
		return source + sep + "_journal_mode=WAL&_busy_timeout=5000"
	case DriverSQLite:
		return source + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	default:
		return source
	}
}

// isMemory reports whether every connection would get its own private
// database, which forces a single-connection pool.
func (d dialect) isMemory(source string) bool {
	if d.driver == DriverPostgres {
		return false
	}
	return source == ":memory:" || strings.Contains(source, "mode=memory")
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// schemaStatements splits the embedded schema into single statements.
// Comments are stripped; statements are separated by semicolons.
func (d dialect) schemaStatements() ([]string, error) {
	content, err := schemaFS.ReadFile(d.schemaFile)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", d.schemaFile, err)
	}

	var lines []string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var stmts []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, nil
}
