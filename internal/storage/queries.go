package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zheng/modgraph/internal/graph"
)

// ErrSnapshotNotFound is returned when no snapshot matches
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot describes one stored catalog
type Snapshot struct {
	ID            string    `json:"id"`
	Project       string    `json:"project"`
	CreatedAt     time.Time `json:"created_at"`
	ItemCount     int       `json:"item_count"`
	RelationCount int       `json:"relation_count"`
}

// UsageCount is an item with the number of items using it
type UsageCount struct {
	Item  graph.Item `json:"item"`
	Users int        `json:"users"`
}

// SaveSnapshot stores the catalog in one transaction and returns the new snapshot ID
func (db *DB) SaveSnapshot(ctx context.Context, project string, cat graph.Catalog) (string, error) {
	id := uuid.NewString()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, project, created_at, item_count, relation_count)
		 VALUES (?, ?, ?, ?, ?)`,
		id, project, time.Now().UnixNano(), len(cat.Items), len(cat.Relations),
	); err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}

	itemStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (snapshot_id, seq, item_id, name, path, kind, visibility, file, line, signature, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer itemStmt.Close()
	for i, it := range cat.Items {
		if _, err := itemStmt.ExecContext(ctx, id, i, it.ID, it.Name, it.Path, it.Kind,
			it.Visibility, it.File, it.Line, it.Signature, it.Doc); err != nil {
			return "", fmt.Errorf("failed to insert item %s: %w", it.ID, err)
		}
	}

	relStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO relations (snapshot_id, seq, source, target, kind) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer relStmt.Close()
	for i, r := range cat.Relations {
		if _, err := relStmt.ExecContext(ctx, id, i, r.Source, r.Target, r.Kind.DisplayName()); err != nil {
			return "", fmt.Errorf("failed to insert relation %s -> %s: %w", r.Source, r.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return id, nil
}

// LoadSnapshot returns the stored catalog with items and relations in their original order
func (db *DB) LoadSnapshot(ctx context.Context, id string) (graph.Catalog, error) {
	var cat graph.Catalog
	if _, err := db.GetSnapshot(ctx, id); err != nil {
		return cat, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_id, name, path, kind, visibility, file, line, signature, doc
		 FROM items WHERE snapshot_id = ? ORDER BY seq`, id)
	if err != nil {
		return cat, err
	}
	cat.Items, err = scanItems(rows)
	rows.Close()
	if err != nil {
		return cat, err
	}

	rows, err = db.conn.QueryContext(ctx,
		`SELECT source, target, kind FROM relations WHERE snapshot_id = ? ORDER BY seq`, id)
	if err != nil {
		return cat, err
	}
	defer rows.Close()
	for rows.Next() {
		var t graph.Triple
		var kind string
		if err := rows.Scan(&t.Source, &t.Target, &kind); err != nil {
			return cat, err
		}
		if t.Kind, err = graph.ParseRelationship(kind); err != nil {
			return cat, err
		}
		cat.Relations = append(cat.Relations, t)
	}
	return cat, rows.Err()
}

// GetSnapshot returns one snapshot's metadata
func (db *DB) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, project, created_at, item_count, relation_count FROM snapshots WHERE id = ?`, id)
	return scanSnapshot(row)
}

// LatestSnapshot returns the newest snapshot of a project
func (db *DB) LatestSnapshot(ctx context.Context, project string) (*Snapshot, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, project, created_at, item_count, relation_count FROM snapshots
		 WHERE project = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, project)
	return scanSnapshot(row)
}

// ListSnapshots returns all snapshots, newest first
func (db *DB) ListSnapshots(ctx context.Context) ([]*Snapshot, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, project, created_at, item_count, relation_count FROM snapshots
		 ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Snapshot
	for rows.Next() {
		var s Snapshot
		var created int64
		if err := rows.Scan(&s.ID, &s.Project, &created, &s.ItemCount, &s.RelationCount); err != nil {
			return nil, err
		}
		s.CreatedAt = time.Unix(0, created)
		result = append(result, &s)
	}
	return result, rows.Err()
}

// DeleteSnapshot removes a snapshot with its items and relations
func (db *DB) DeleteSnapshot(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return nil
}

// SearchItems returns items whose ID matches a pattern (using LIKE)
// Results are sorted by match quality: exact short name > ends with pattern > contains pattern
func (db *DB) SearchItems(ctx context.Context, snapshotID, pattern string, limit int) ([]graph.Item, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_id, name, path, kind, visibility, file, line, signature, doc FROM items
		 WHERE snapshot_id = ? AND item_id LIKE ?
		 ORDER BY
			CASE
				WHEN name = ? THEN 0
				WHEN item_id LIKE '%' || ? THEN 1
				ELSE 2
			END,
			length(item_id) ASC, seq ASC
		 LIMIT ?`,
		snapshotID, "%"+pattern+"%", pattern, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// TopUsed returns the items with the most distinct users
func (db *DB) TopUsed(ctx context.Context, snapshotID string, limit int) ([]UsageCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT i.item_id, i.name, i.path, i.kind, i.visibility, i.file, i.line, i.signature, i.doc,
		       COUNT(DISTINCT r.source) AS users
		FROM items i
		JOIN relations r ON r.snapshot_id = i.snapshot_id AND r.target = i.item_id AND r.kind = 'uses'
		WHERE i.snapshot_id = ? AND r.source <> i.item_id
		GROUP BY i.item_id
		ORDER BY users DESC, i.seq ASC
		LIMIT ?`, snapshotID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []UsageCount
	for rows.Next() {
		var u UsageCount
		if err := scanItemInto(rows, &u.Item, &u.Users); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// GetStats returns item and relation counts of a snapshot
func (db *DB) GetStats(ctx context.Context, snapshotID string) (itemCount, relationCount int64, err error) {
	err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE snapshot_id = ?`, snapshotID).Scan(&itemCount)
	if err != nil {
		return
	}
	err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM relations WHERE snapshot_id = ?`, snapshotID).Scan(&relationCount)
	return
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var s Snapshot
	var created int64
	if err := row.Scan(&s.ID, &s.Project, &created, &s.ItemCount, &s.RelationCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	s.CreatedAt = time.Unix(0, created)
	return &s, nil
}

func scanItemInto(rows *sql.Rows, it *graph.Item, extra ...any) error {
	var visibility, file, signature, doc sql.NullString
	var line sql.NullInt64
	dest := []any{&it.ID, &it.Name, &it.Path, &it.Kind, &visibility, &file, &line, &signature, &doc}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	it.Visibility = graph.Visibility(visibility.String)
	it.File = file.String
	it.Line = int(line.Int64)
	it.Signature = signature.String
	it.Doc = doc.String
	return nil
}

func scanItems(rows *sql.Rows) ([]graph.Item, error) {
	var items []graph.Item
	for rows.Next() {
		var it graph.Item
		if err := scanItemInto(rows, &it); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
