package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Option reads a persisted option.
func (s *Store) Option(ctx context.Context, name string) (string, bool, error) {
	row, err := queryRow(ctx, s.db, s.sb.Select("value").From("options").Where(sq.Eq{"name": name}))
	if err != nil {
		return "", false, err
	}
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read option %s: %w", name, err)
	}
	return value, true, nil
}

// SetOption upserts an option.
func (s *Store) SetOption(ctx context.Context, name, value string) error {
	_, err := exec(ctx, s.db, s.sb.Insert("options").
		Columns("name", "value").
		Values(name, value).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = excluded.value"))
	if err != nil {
		return fmt.Errorf("write option %s: %w", name, err)
	}
	return nil
}
