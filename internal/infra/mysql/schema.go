package mysql

import (
	"context"
	_ "embed"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// Schema 返回建表语句（按分号拆分）
func Schema() []string {
	return splitStatements(schemaSQL)
}

// ApplySchema 执行建表语句，已存在的表不受影响
func ApplySchema(ctx context.Context, db *sqlx.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "apply schema: %.60s", stmt)
		}
	}
	return nil
}

func splitStatements(src string) []string {
	var out []string
	for _, s := range strings.Split(src, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
