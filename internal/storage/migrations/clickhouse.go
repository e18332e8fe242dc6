package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	chstore "synth-cohort/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the analytics database named in dsn and the
// subject_rows table inside it. The returned connection targets that database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	db, err := analyticsDatabase(dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureDatabase(ctx, dsn, db); err != nil {
		return nil, err
	}

	list, err := scripts(AnalyticsSchema, "clickhouse")
	if err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, db)
	if err != nil {
		return nil, fmt.Errorf("connect analytics database %s: %w", db, err)
	}
	for _, s := range list {
		// The native protocol accepts one statement per Exec.
		for _, stmt := range splitStatements(s.body) {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("analytics schema %s: %w", s.name, err)
			}
		}
	}
	return conn, nil
}

func ensureDatabase(ctx context.Context, dsn, db string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse server: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+db); err != nil {
		return fmt.Errorf("create analytics database %s: %w", db, err)
	}
	return nil
}

// splitStatements cuts a script at semicolons that sit outside quoted
// literals. Line comments are dropped.
func splitStatements(body string) []string {
	var (
		stmts   []string
		cur     strings.Builder
		quote   byte
		comment bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(cur.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		cur.Reset()
	}

	for i := 0; i < len(body); i++ {
		ch := body[i]
		switch {
		case comment:
			if ch == '\n' {
				comment = false
				cur.WriteByte(ch)
			}
		case quote != 0:
			cur.WriteByte(ch)
			if ch == '\\' && i+1 < len(body) {
				i++
				cur.WriteByte(body[i])
			} else if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
			cur.WriteByte(ch)
		case ch == '-' && i+1 < len(body) && body[i+1] == '-':
			comment = true
			i++
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return stmts
}

// analyticsDatabase extracts the database name from a clickhouse:// dsn.
func analyticsDatabase(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn %q names no analytics database", u.Redacted())
	}
	return db, nil
}
