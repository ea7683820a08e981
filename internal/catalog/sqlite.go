package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/metcalfcloud/pictallion/internal/catalog/migrations"
	"github.com/metcalfcloud/pictallion/internal/library"
	"github.com/metcalfcloud/pictallion/internal/model"
)

// SQLiteCatalog implements the library.Catalog interface using SQLite.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

// NewSQLiteCatalog creates a new SQLite catalog connection.
// path can be a file path or ":memory:" for an in-memory catalog.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteCatalog{db: db, path: path}, nil
}

// NewSQLiteCatalogFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteCatalogFromDB(db *sql.DB) *SQLiteCatalog {
	return &SQLiteCatalog{db: db}
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a properly configured
// connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty
	// database; pin the pool to a single connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Foreign keys are OFF by default in SQLite.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Batch workers share this connection; wait for locks instead of
	// failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Asset operations

func (c *SQLiteCatalog) CreateAssetWithInstance(ctx context.Context, asset *model.Asset, instance *model.FileInstance) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assets (id, original_filename, created_at) VALUES (?, ?, ?)`,
		asset.ID, asset.OriginalFilename, asset.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting asset: %w", err)
	}

	if err := insertInstance(ctx, tx, instance); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	var a model.Asset
	err := c.db.QueryRowContext(ctx,
		`SELECT id, original_filename, created_at FROM assets WHERE id = ?`, id).
		Scan(&a.ID, &a.OriginalFilename, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", library.ErrAssetNotFound, id)
		}
		return nil, fmt.Errorf("getting asset: %w", err)
	}
	return &a, nil
}

// Instance operations

const instanceColumns = `id, asset_id, tier, file_path, file_size, mime_type, content_hash,
	perceptual_hash, is_reviewed, rating, discarded, kept_duplicate, superseded,
	metadata, capture_time, created_at`

func (c *SQLiteCatalog) FindInstanceByContentHash(ctx context.Context, hash string) (*model.FileInstance, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM file_instances
		 WHERE content_hash = ? AND superseded = 0 AND discarded = 0 AND kept_duplicate = 0
		 LIMIT 1`, hash)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding instance by content hash: %w", err)
	}
	return inst, nil
}

func (c *SQLiteCatalog) CurrentInstance(ctx context.Context, assetID string) (*model.FileInstance, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM file_instances
		 WHERE asset_id = ? AND superseded = 0
		 ORDER BY CASE tier WHEN 'finalized' THEN 2 WHEN 'reviewed' THEN 1 ELSE 0 END DESC
		 LIMIT 1`, assetID)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No active instance
		}
		return nil, fmt.Errorf("getting current instance: %w", err)
	}
	return inst, nil
}

func (c *SQLiteCatalog) ListActiveInstances(ctx context.Context) ([]*model.FileInstance, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM file_instances
		 WHERE superseded = 0 AND discarded = 0
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing active instances: %w", err)
	}
	defer rows.Close()

	var out []*model.FileInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning instance: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing active instances: %w", err)
	}
	return out, nil
}

func (c *SQLiteCatalog) GetInstance(ctx context.Context, id string) (*model.FileInstance, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM file_instances WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting instance: %w", err)
	}
	return inst, nil
}

func (c *SQLiteCatalog) SetDecision(ctx context.Context, instanceID string, discarded, keptDuplicate bool) error {
	// Both fields in one statement: a decision is never partially visible.
	_, err := c.db.ExecContext(ctx,
		`UPDATE file_instances SET discarded = ?, kept_duplicate = ? WHERE id = ?`,
		discarded, keptDuplicate, instanceID)
	if err != nil {
		return fmt.Errorf("recording group decision: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) SetReviewed(ctx context.Context, instanceID string, reviewed bool) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE file_instances SET is_reviewed = ? WHERE id = ?`, reviewed, instanceID)
	if err != nil {
		return fmt.Errorf("setting reviewed flag: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) SetRating(ctx context.Context, instanceID string, rating int) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE file_instances SET rating = ? WHERE id = ?`, rating, instanceID)
	if err != nil {
		return fmt.Errorf("setting rating: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) SetPerceptualHash(ctx context.Context, instanceID string, hash uint64) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE file_instances SET perceptual_hash = ? WHERE id = ?`, int64(hash), instanceID)
	if err != nil {
		return fmt.Errorf("setting perceptual hash: %w", err)
	}
	return nil
}

// Transition operations

// ApplyTransition atomically records a successful transition:
// 1. Re-reads the asset's current instance inside the transaction and
//    verifies it is still at record.FromTier (compare-and-set).
// 2. Inserts the transition record; the partial unique index rejects a
//    second success for the same (asset, from-tier).
// 3. Inserts the next-tier instance and marks the prior one superseded.
// Any failure rolls the whole transition back.
func (c *SQLiteCatalog) ApplyTransition(ctx context.Context, record *model.TransitionRecord, next *model.FileInstance) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var currentID string
	var currentTier model.Tier
	err = tx.QueryRowContext(ctx,
		`SELECT id, tier FROM file_instances
		 WHERE asset_id = ? AND superseded = 0
		 ORDER BY CASE tier WHEN 'finalized' THEN 2 WHEN 'reviewed' THEN 1 ELSE 0 END DESC
		 LIMIT 1`, record.AssetID).Scan(&currentID, &currentTier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: asset %s has no active instance", library.ErrTransitionConflict, record.AssetID)
		}
		return fmt.Errorf("reading current instance: %w", err)
	}
	if currentTier != record.FromTier {
		return fmt.Errorf("%w: asset %s is at tier %s, expected %s",
			library.ErrTransitionConflict, record.AssetID, currentTier, record.FromTier)
	}

	if err := insertRecord(ctx, tx, record); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transition %s -> %s already succeeded for asset %s",
				library.ErrTransitionConflict, record.FromTier, record.ToTier, record.AssetID)
		}
		return err
	}

	if err := insertInstance(ctx, tx, next); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE file_instances SET superseded = 1 WHERE id = ?`, currentID); err != nil {
		return fmt.Errorf("superseding prior instance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) RecordTransitionFailure(ctx context.Context, record *model.TransitionRecord) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRecord(ctx, tx, record); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) FindSuccessfulTransition(ctx context.Context, assetID string, fromTier model.Tier) (*model.TransitionRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT seq, id, asset_id, from_tier, to_tier, actor, outcome, reason, created_at
		 FROM transition_records
		 WHERE asset_id = ? AND from_tier = ? AND outcome = 'success'`, assetID, fromTier)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding successful transition: %w", err)
	}
	return rec, nil
}

func (c *SQLiteCatalog) ListTransitions(ctx context.Context, assetID string) ([]*model.TransitionRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT seq, id, asset_id, from_tier, to_tier, actor, outcome, reason, created_at
		 FROM transition_records WHERE asset_id = ? ORDER BY seq`, assetID)
	if err != nil {
		return nil, fmt.Errorf("listing transitions: %w", err)
	}
	defer rows.Close()

	var out []*model.TransitionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transition record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing transitions: %w", err)
	}
	return out, nil
}

func (c *SQLiteCatalog) MaxTransitionSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM transition_records`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("getting max transition seq: %w", err)
	}
	return seq, nil
}

// SnapshotTo creates a complete copy of the catalog at destPath using VACUUM INTO.
func (c *SQLiteCatalog) SnapshotTo(ctx context.Context, destPath string) error {
	_, err := c.db.ExecContext(ctx, "VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("snapshotting catalog: %w", err)
	}
	return nil
}

// Path returns the catalog file path (or ":memory:").
func (c *SQLiteCatalog) Path() string {
	return c.path
}

// Migrate brings the catalog schema to the latest version. No-op when
// already current.
func (c *SQLiteCatalog) Migrate() error {
	return migrations.Up(c.db)
}

// CheckMigrations verifies the catalog schema is up-to-date.
func (c *SQLiteCatalog) CheckMigrations() error {
	return migrations.CheckStatus(c.db)
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Row helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*model.FileInstance, error) {
	var inst model.FileInstance
	var phash sql.NullInt64
	var captureTime sql.NullTime
	var metadata string

	err := row.Scan(&inst.ID, &inst.AssetID, &inst.Tier, &inst.FilePath, &inst.FileSize,
		&inst.MimeType, &inst.ContentHash, &phash, &inst.IsReviewed, &inst.Rating,
		&inst.Discarded, &inst.KeptDuplicate, &inst.Superseded, &metadata,
		&captureTime, &inst.CreatedAt)
	if err != nil {
		return nil, err
	}

	if phash.Valid {
		h := uint64(phash.Int64)
		inst.PerceptualHash = &h
	}
	if captureTime.Valid {
		t := captureTime.Time
		inst.CaptureTime = &t
	}
	if err := json.Unmarshal([]byte(metadata), &inst.Metadata); err != nil {
		return nil, fmt.Errorf("decoding instance metadata: %w", err)
	}
	return &inst, nil
}

func insertInstance(ctx context.Context, tx *sql.Tx, inst *model.FileInstance) error {
	metadata, err := json.Marshal(inst.Metadata)
	if err != nil {
		return fmt.Errorf("encoding instance metadata: %w", err)
	}

	var phash any
	if inst.PerceptualHash != nil {
		phash = int64(*inst.PerceptualHash)
	}
	var captureTime any
	if inst.CaptureTime != nil {
		captureTime = *inst.CaptureTime
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO file_instances (`+instanceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.AssetID, inst.Tier, inst.FilePath, inst.FileSize, inst.MimeType,
		inst.ContentHash, phash, inst.IsReviewed, inst.Rating, inst.Discarded,
		inst.KeptDuplicate, inst.Superseded, string(metadata), captureTime, inst.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting file instance: %w", err)
	}
	return nil
}

func scanRecord(row rowScanner) (*model.TransitionRecord, error) {
	var rec model.TransitionRecord
	err := row.Scan(&rec.Seq, &rec.ID, &rec.AssetID, &rec.FromTier, &rec.ToTier,
		&rec.Actor, &rec.Outcome, &rec.Reason, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec *model.TransitionRecord) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transition_records (id, asset_id, from_tier, to_tier, actor, outcome, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AssetID, rec.FromTier, rec.ToTier, rec.Actor, rec.Outcome, rec.Reason, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting transition record: %w", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		rec.Seq = seq
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Compile-time check that SQLiteCatalog implements library.Catalog.
var _ library.Catalog = (*SQLiteCatalog)(nil)
