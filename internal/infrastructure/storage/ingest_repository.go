package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"HappyPlaceLocal/internal/domain"
)

// Create inserts the item with its initial meta; a blank stage defaults to new.
func (s *Store) Create(ctx context.Context, item domain.IngestItem) (int64, error) {
	if item.Stage == "" {
		item.Stage = domain.StageNew
	}
	if !item.Stage.Valid() {
		return 0, fmt.Errorf("%w: unknown stage %q", domain.ErrInvalidTransition, item.Stage)
	}
	payload, err := encodePayload(item.Payload)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		row, err := queryRow(ctx, tx, s.sb.Insert("ingest_items").
			Columns("target_type", "stage", "payload", "created_at", "updated_at").
			Values(string(item.TargetType), string(item.Stage), payload, now, now).
			Suffix("RETURNING id"))
		if err != nil {
			return err
		}
		if err := row.Scan(&id); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		for key, value := range item.Meta {
			if err := s.upsertMeta(ctx, tx, id, key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Load reads the item and all its meta fields.
func (s *Store) Load(ctx context.Context, id int64) (domain.IngestItem, error) {
	row, err := queryRow(ctx, s.db, s.sb.
		Select("id", "target_type", "stage", "payload", "created_at", "updated_at").
		From("ingest_items").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.IngestItem{}, err
	}

	var (
		item                 domain.IngestItem
		target, stage, raw   string
		createdAt, updatedAt string
	)
	if err := row.Scan(&item.ID, &target, &stage, &raw, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IngestItem{}, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
		}
		return domain.IngestItem{}, fmt.Errorf("load item %d: %w", id, err)
	}
	item.TargetType = domain.TargetType(target)
	item.Stage = domain.Stage(stage)
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(raw), &item.Payload); err != nil {
		return domain.IngestItem{}, fmt.Errorf("decode payload of item %d: %w", id, err)
	}
	if item.Payload == nil {
		item.Payload = domain.Payload{}
	}

	rows, err := query(ctx, s.db, s.sb.
		Select("meta_key", "meta_value").
		From("ingest_meta").
		Where(sq.Eq{"item_id": id}))
	if err != nil {
		return domain.IngestItem{}, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	item.Meta = map[string]any{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.IngestItem{}, fmt.Errorf("scan meta: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			return domain.IngestItem{}, fmt.Errorf("decode meta %s: %w", key, err)
		}
		item.Meta[key] = v
	}
	if err := rows.Err(); err != nil {
		return domain.IngestItem{}, fmt.Errorf("rows iteration: %w", err)
	}
	return item, nil
}

// SavePayload replaces the payload.
func (s *Store) SavePayload(ctx context.Context, id int64, payload domain.Payload) error {
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	return s.updateItem(ctx, id, sq.Eq{"id": id}, map[string]any{"payload": raw})
}

// SetTargetType updates the target type.
func (s *Store) SetTargetType(ctx context.Context, id int64, target domain.TargetType) error {
	return s.updateItem(ctx, id, sq.Eq{"id": id}, map[string]any{"target_type": string(target)})
}

// SetMeta upserts one meta field stored as JSON.
func (s *Store) SetMeta(ctx context.Context, id int64, key string, value any) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	return s.upsertMeta(ctx, s.db, id, key, value)
}

// Meta reads one meta field.
func (s *Store) Meta(ctx context.Context, id int64, key string) (any, bool, error) {
	row, err := queryRow(ctx, s.db, s.sb.
		Select("meta_value").
		From("ingest_meta").
		Where(sq.Eq{"item_id": id, "meta_key": key}))
	if err != nil {
		return nil, false, err
	}
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if err := s.exists(ctx, id); err != nil {
				return nil, false, err
			}
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read meta %s: %w", key, err)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false, fmt.Errorf("decode meta %s: %w", key, err)
	}
	return v, true, nil
}

// TransitionStage moves the item only while it still sits at from.
func (s *Store) TransitionStage(ctx context.Context, id int64, from, to domain.Stage) error {
	if err := domain.CheckTransition(from, to); err != nil {
		return err
	}
	err := s.updateItem(ctx, id, sq.Eq{"id": id, "stage": string(from)}, map[string]any{"stage": string(to)})
	if errors.Is(err, errNoRows) {
		if err := s.exists(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("item %d left %s: %w", id, from, domain.ErrStageConflict)
	}
	return err
}

// ListByStage returns up to limit ids waiting at stage, oldest first.
func (s *Store) ListByStage(ctx context.Context, stage domain.Stage, limit int) ([]int64, error) {
	b := s.sb.Select("id").From("ingest_items").Where(sq.Eq{"stage": string(stage)}).OrderBy("id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", stage, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return ids, nil
}

var errNoRows = errors.New("no rows affected")

func (s *Store) updateItem(ctx context.Context, id int64, where sq.Eq, set map[string]any) error {
	set["updated_at"] = s.timestamp()
	res, err := exec(ctx, s.db, s.sb.Update("ingest_items").SetMap(set).Where(where))
	if err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if len(where) == 1 {
			return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
		}
		return errNoRows
	}
	return nil
}

func (s *Store) upsertMeta(ctx context.Context, db execer, id int64, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode meta %s: %w", key, err)
	}
	_, err = exec(ctx, db, s.sb.Insert("ingest_meta").
		Columns("item_id", "meta_key", "meta_value").
		Values(id, key, string(raw)).
		Suffix("ON CONFLICT (item_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value"))
	if err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, id int64) error {
	row, err := queryRow(ctx, s.db, s.sb.Select("1").From("ingest_items").Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("check item %d: %w", id, err)
	}
	return nil
}

func encodePayload(p domain.Payload) (string, error) {
	if p == nil {
		p = domain.Payload{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(raw), nil
}
