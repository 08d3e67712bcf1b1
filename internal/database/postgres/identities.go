package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// IdentityRepository provides PostgreSQL-backed identity storage with an optional
// in-memory nearest-neighbour index.
type IdentityRepository struct {
	pool      *Pool
	index     *database.IdentityIndex
	enabled   bool
	indexPath string // Path to persist the index (optional)
	indexMu   sync.RWMutex
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = `id, name, embedding, shift_id, base_salary, active, updated_at`

// GetIdentity retrieves an identity by ID.
func (r *IdentityRepository) GetIdentity(ctx context.Context, id int64) (*database.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	identity, err := scanIdentityRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// ListIdentities returns identities ordered by ID.
func (r *IdentityRepository) ListIdentities(ctx context.Context, activeOnly bool) ([]database.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()
	return scanIdentities(rows)
}

// NearestIdentities returns candidate identities ordered by cosine distance.
// Uses the in-memory index if enabled, otherwise falls back to PostgreSQL.
func (r *IdentityRepository) NearestIdentities(
	ctx context.Context, probe []float32, limit int,
) ([]database.Identity, error) {
	r.indexMu.RLock()
	enabled := r.enabled && r.index != nil
	r.indexMu.RUnlock()

	if enabled {
		return r.nearestIndexed(ctx, probe, limit)
	}
	return r.nearestPostgres(ctx, probe, limit)
}

func (r *IdentityRepository) nearestIndexed(
	ctx context.Context, probe []float32, limit int,
) ([]database.Identity, error) {
	r.indexMu.RLock()
	hits := r.index.Search(probe, limit)
	r.indexMu.RUnlock()

	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.IdentityID
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+identityColumns+` FROM identities
		 WHERE id = ANY($1) AND active AND embedding IS NOT NULL`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query indexed identities: %w", err)
	}
	defer rows.Close()

	found, err := scanIdentities(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]database.Identity, len(found))
	for _, identity := range found {
		byID[identity.ID] = identity
	}

	// Preserve index order.
	result := make([]database.Identity, 0, len(found))
	for _, id := range ids {
		if identity, ok := byID[id]; ok {
			result = append(result, identity)
		}
	}
	return result, nil
}

// nearestPostgres uses pgvector for similarity search with ef_search optimization.
func (r *IdentityRepository) nearestPostgres(
	ctx context.Context, probe []float32, limit int,
) ([]database.Identity, error) {
	if database.Norm(probe) == 0 {
		return nil, nil
	}

	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, fmt.Errorf("set ef_search: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities
		 WHERE active AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1::vector, id
		 LIMIT $2`, pgvector.NewVector(probe), limit)
	if err != nil {
		return nil, fmt.Errorf("query nearest identities: %w", err)
	}
	defer rows.Close()
	return scanIdentities(rows)
}

// CreateIdentity stores a new identity.
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity *database.Identity) error {
	var vec any
	if identity.Enrolled() {
		vec = pgvector.NewVector(identity.Embedding)
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO identities (name, embedding, shift_id, base_salary, active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, updated_at`,
		identity.Name, vec, nullInt64(identity.ShiftID), identity.BaseSalary, identity.Active,
	).Scan(&identity.ID, &identity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	r.indexUpsert(identity)
	return nil
}

// SaveEmbedding replaces the reference vector of an identity.
func (r *IdentityRepository) SaveEmbedding(ctx context.Context, id int64, embedding []float32) error {
	res, err := r.pool.Exec(ctx,
		`UPDATE identities SET embedding = $2, updated_at = NOW() WHERE id = $1`,
		id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return r.afterUpdate(ctx, res, id)
}

// SetActive soft-deletes or restores an identity.
func (r *IdentityRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.pool.Exec(ctx,
		`UPDATE identities SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update identity active: %w", err)
	}
	return r.afterUpdate(ctx, res, id)
}

// DeleteIdentity hard-deletes an identity. Attendance, leave and payroll rows cascade.
func (r *IdentityRepository) DeleteIdentity(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if r.isIndexEnabled() {
		r.indexMu.Lock()
		r.index.Remove(id)
		r.indexMu.Unlock()
	}
	return nil
}

// afterUpdate re-reads a changed identity to keep the index in step.
func (r *IdentityRepository) afterUpdate(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("identity %d: %w", id, sql.ErrNoRows)
	}
	if !r.isIndexEnabled() {
		return nil
	}
	identity, err := r.GetIdentity(ctx, id)
	if err != nil {
		return err
	}
	if identity != nil {
		r.indexUpsert(identity)
	}
	return nil
}

func (r *IdentityRepository) indexUpsert(identity *database.Identity) {
	if !r.isIndexEnabled() {
		return
	}
	r.indexMu.Lock()
	r.index.Upsert(identity)
	r.indexMu.Unlock()
}

func (r *IdentityRepository) isIndexEnabled() bool {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()
	return r.enabled && r.index != nil
}

// indexStats returns the number of indexable identities and the newest update time.
func (r *IdentityRepository) indexStats(ctx context.Context) (int, time.Time, error) {
	var count int
	var newest sql.NullTime
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(updated_at) FROM identities WHERE active AND embedding IS NOT NULL`,
	).Scan(&count, &newest)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to get identity stats: %w", err)
	}
	return count, newest.Time, nil
}

// tryLoadIndex attempts to load the index from disk. Returns true if the
// persisted index matches the database.
func (r *IdentityRepository) tryLoadIndex(indexPath string, count int, newest time.Time) bool {
	metadata, err := database.LoadIdentityIndexMetadata(indexPath)
	if err != nil {
		fmt.Printf("Identity index: metadata file error: %v (will rebuild)\n", err)
		return false
	}
	if metadata.IdentityCount != count || !metadata.LastUpdated.Equal(newest) {
		fmt.Printf("Identity index: stale (db: count=%d, cached: count=%d) (will rebuild)\n",
			count, metadata.IdentityCount)
		return false
	}

	index := database.NewIdentityIndex()
	if err := index.Load(indexPath); err != nil {
		fmt.Printf("Identity index: load failed: %v (will rebuild)\n", err)
		return false
	}
	r.index = index
	fmt.Printf("Identity index: loaded from disk (%d identities)\n", index.Count())
	return true
}

// EnableIndex loads or builds the in-memory identity index. If indexPath is
// provided, it tries to load from disk first and saves after building.
// This should be called once at startup.
func (r *IdentityRepository) EnableIndex(ctx context.Context, indexPath string) error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	r.indexPath = indexPath

	count, newest, err := r.indexStats(ctx)
	if err != nil {
		return err
	}

	if indexPath != "" && r.tryLoadIndex(indexPath, count, newest) {
		r.enabled = true
		return nil
	}

	identities, err := r.ListIdentities(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to load identities: %w", err)
	}

	r.index = database.NewIdentityIndex()
	r.index.Build(identities)
	r.index.SetPath(indexPath)

	if indexPath != "" && r.index.Count() > 0 {
		metadata := database.IdentityIndexMetadata{LastUpdated: newest, BuildTime: time.Now()}
		if err := r.index.Save(metadata); err != nil {
			fmt.Printf("Warning: failed to save identity index to disk: %v\n", err)
		}
	}

	r.enabled = true
	return nil
}

// DisableIndex disables the in-memory index, falling back to PostgreSQL queries.
func (r *IdentityRepository) DisableIndex() {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	r.enabled = false
	r.index = nil
}

// IsIndexEnabled returns whether the in-memory index is enabled.
func (r *IdentityRepository) IsIndexEnabled() bool {
	return r.isIndexEnabled()
}

// IndexCount returns the number of identities in the index.
func (r *IdentityRepository) IndexCount() int {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()
	if r.index == nil {
		return 0
	}
	return r.index.Count()
}

// RebuildIndex rebuilds the index from PostgreSQL data.
func (r *IdentityRepository) RebuildIndex(ctx context.Context) error {
	r.indexMu.RLock()
	indexPath := r.indexPath
	r.indexMu.RUnlock()
	if indexPath != "" {
		// Force a rebuild rather than reloading the cached file.
		_ = removeIndexFiles(indexPath)
	}
	return r.EnableIndex(ctx, indexPath)
}

// SaveIndex saves the current index to disk (if path configured).
func (r *IdentityRepository) SaveIndex() error {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()

	if r.indexPath == "" || r.index == nil {
		return nil
	}

	_, newest, err := r.indexStats(context.Background())
	if err != nil {
		return err
	}
	metadata := database.IdentityIndexMetadata{LastUpdated: newest, BuildTime: time.Now()}
	if err := r.index.Save(metadata); err != nil {
		return fmt.Errorf("saving identity index: %w", err)
	}
	fmt.Printf("Identity index save: saved %d identities to %s\n", r.index.Count(), r.indexPath)
	return nil
}

func scanIdentityRow(scanner interface{ Scan(...any) error }) (database.Identity, error) {
	var identity database.Identity
	var vec nullVector
	var shiftID sql.NullInt64

	if err := scanner.Scan(
		&identity.ID,
		&identity.Name,
		&vec,
		&shiftID,
		&identity.BaseSalary,
		&identity.Active,
		&identity.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity, err
		}
		return identity, fmt.Errorf("scan identity: %w", err)
	}
	if vec.Valid {
		identity.Embedding = vec.Vector.Slice()
	}
	if shiftID.Valid {
		id := shiftID.Int64
		identity.ShiftID = &id
	}
	return identity, nil
}

func scanIdentities(rows *sql.Rows) ([]database.Identity, error) {
	var identities []database.Identity
	for rows.Next() {
		identity, err := scanIdentityRow(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// nullVector scans a nullable vector column.
type nullVector struct {
	Vector pgvector.Vector
	Valid  bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.Valid = false
		return nil
	}
	n.Valid = true
	if err := n.Vector.Scan(src); err != nil {
		return fmt.Errorf("scan vector: %w", err)
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func removeIndexFiles(path string) error {
	for _, p := range []string{path, path + ".meta", path + ".vectors"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}
