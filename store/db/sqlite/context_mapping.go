package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/medrecall/medrecall/store"
)

func (d *DB) GetContextClusterMapping(ctx context.Context, find *store.FindContextClusterMapping) (*store.ContextClusterMapping, error) {
	query := `
		SELECT id, context_type, context_id, specialty, difficulty, cluster_key, matched_by, updated_ts
		FROM context_cluster_mapping
		WHERE context_type = ? AND context_id = ?`

	var mapping store.ContextClusterMapping
	var difficulty, clusterKey sql.NullString
	if err := d.db.QueryRowContext(ctx, query, find.ContextType, find.ContextID).Scan(
		&mapping.ID,
		&mapping.ContextType,
		&mapping.ContextID,
		&mapping.Specialty,
		&difficulty,
		&clusterKey,
		&mapping.MatchedBy,
		&mapping.UpdatedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get context cluster mapping: %w", err)
	}

	if difficulty.Valid {
		mapping.Difficulty = &difficulty.String
	}
	if clusterKey.Valid {
		mapping.ClusterKey = &clusterKey.String
	}
	return &mapping, nil
}

func (d *DB) UpsertContextClusterMapping(ctx context.Context, upsert *store.ContextClusterMapping) (*store.ContextClusterMapping, error) {
	stmt := `
		INSERT INTO context_cluster_mapping (context_type, context_id, specialty, difficulty, cluster_key, matched_by)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (context_type, context_id) DO UPDATE SET
			specialty = EXCLUDED.specialty,
			difficulty = EXCLUDED.difficulty,
			cluster_key = EXCLUDED.cluster_key,
			matched_by = EXCLUDED.matched_by,
			updated_ts = strftime('%s', 'now')
		RETURNING id, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.ContextType,
		upsert.ContextID,
		upsert.Specialty,
		upsert.Difficulty,
		upsert.ClusterKey,
		upsert.MatchedBy,
	).Scan(
		&upsert.ID,
		&upsert.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert context cluster mapping: %w", err)
	}

	return upsert, nil
}
