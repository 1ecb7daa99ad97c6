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

// CreatePost inserts a post with its meta fields.
func (s *Store) CreatePost(ctx context.Context, post domain.Post) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		row, err := queryRow(ctx, tx, s.sb.Insert("posts").
			Columns("post_type", "title", "body", "status", "created_at", "updated_at").
			Values(post.Type, post.Title, post.Body, post.Status, now, now).
			Suffix("RETURNING id"))
		if err != nil {
			return err
		}
		if err := row.Scan(&id); err != nil {
			return fmt.Errorf("insert post: %w", err)
		}
		return s.upsertPostMeta(ctx, tx, id, post.Meta)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetPost loads a post and its meta.
func (s *Store) GetPost(ctx context.Context, id int64) (domain.Post, error) {
	row, err := queryRow(ctx, s.db, s.sb.
		Select("id", "post_type", "title", "body", "status", "created_at", "updated_at").
		From("posts").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.Post{}, err
	}

	var (
		post                 domain.Post
		createdAt, updatedAt string
	)
	if err := row.Scan(&post.ID, &post.Type, &post.Title, &post.Body, &post.Status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Post{}, fmt.Errorf("post %d: %w", id, domain.ErrNotFound)
		}
		return domain.Post{}, fmt.Errorf("load post %d: %w", id, err)
	}
	post.CreatedAt = parseTime(createdAt)
	post.UpdatedAt = parseTime(updatedAt)

	rows, err := query(ctx, s.db, s.sb.Select("meta_key", "meta_value").From("post_meta").Where(sq.Eq{"post_id": id}))
	if err != nil {
		return domain.Post{}, fmt.Errorf("query post meta: %w", err)
	}
	defer rows.Close()

	post.Meta = map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return domain.Post{}, fmt.Errorf("scan post meta: %w", err)
		}
		post.Meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return domain.Post{}, fmt.Errorf("rows iteration: %w", err)
	}
	return post, nil
}

// UpdatePost merges meta and replaces the body when one is given.
func (s *Store) UpdatePost(ctx context.Context, id int64, update domain.PostUpdate) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		set := map[string]any{"updated_at": s.timestamp()}
		if update.Body != nil {
			set["body"] = *update.Body
		}
		res, err := exec(ctx, tx, s.sb.Update("posts").SetMap(set).Where(sq.Eq{"id": id}))
		if err != nil {
			return fmt.Errorf("update post %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("post %d: %w", id, domain.ErrNotFound)
		}
		return s.upsertPostMeta(ctx, tx, id, update.Meta)
	})
}

// AppendEnhancement adds an audit entry.
func (s *Store) AppendEnhancement(ctx context.Context, entry domain.Enhancement) error {
	changed := entry.ChangedFields
	if changed == nil {
		changed = []string{}
	}
	raw, err := json.Marshal(changed)
	if err != nil {
		return fmt.Errorf("encode changed fields: %w", err)
	}
	if _, err := s.GetPost(ctx, entry.PostID); err != nil {
		return err
	}
	_, err = exec(ctx, s.db, s.sb.Insert("enhancement_log").
		Columns("id", "post_id", "item_id", "score", "changed_fields", "created_at").
		Values(entry.ID, entry.PostID, entry.ItemID, entry.Score, string(raw), entry.CreatedAt.UTC().Format(timeLayout)))
	if err != nil {
		return fmt.Errorf("append enhancement: %w", err)
	}
	return nil
}

// Enhancements lists audit entries oldest first.
func (s *Store) Enhancements(ctx context.Context, postID int64) ([]domain.Enhancement, error) {
	rows, err := query(ctx, s.db, s.sb.
		Select("id", "post_id", "item_id", "score", "changed_fields", "created_at").
		From("enhancement_log").
		Where(sq.Eq{"post_id": postID}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("query enhancements: %w", err)
	}
	defer rows.Close()

	var out []domain.Enhancement
	for rows.Next() {
		var (
			e              domain.Enhancement
			changed, stamp string
		)
		if err := rows.Scan(&e.ID, &e.PostID, &e.ItemID, &e.Score, &changed, &stamp); err != nil {
			return nil, fmt.Errorf("scan enhancement: %w", err)
		}
		if err := json.Unmarshal([]byte(changed), &e.ChangedFields); err != nil {
			return nil, fmt.Errorf("decode changed fields: %w", err)
		}
		e.CreatedAt = parseTime(stamp)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (s *Store) upsertPostMeta(ctx context.Context, db execer, id int64, meta map[string]string) error {
	for k, v := range meta {
		_, err := exec(ctx, db, s.sb.Insert("post_meta").
			Columns("post_id", "meta_key", "meta_value").
			Values(id, k, v).
			Suffix("ON CONFLICT (post_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value"))
		if err != nil {
			return fmt.Errorf("write post meta %s: %w", k, err)
		}
	}
	return nil
}
