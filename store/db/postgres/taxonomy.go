package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/medrecall/medrecall/store"
)

func (d *DB) ListClusterTaxonomyEntries(ctx context.Context, find *store.FindClusterTaxonomyEntry) ([]*store.ClusterTaxonomyEntry, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.Specialty; v != nil {
		where, args = append(where, "cluster_taxonomy.specialty = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ClusterKey; v != nil {
		where, args = append(where, "cluster_taxonomy.cluster_key = "+placeholder(len(args)+1)), append(args, *v)
	}

	// Stored order: the resolver's tie-break depends on it.
	query := `
		SELECT id, specialty, cluster_key, label, keywords, position
		FROM cluster_taxonomy
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY cluster_taxonomy.position ASC, cluster_taxonomy.id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query taxonomy entries: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ClusterTaxonomyEntry, 0)
	for rows.Next() {
		var entry store.ClusterTaxonomyEntry
		var keywords string

		if err := rows.Scan(
			&entry.ID,
			&entry.Specialty,
			&entry.ClusterKey,
			&entry.Label,
			&keywords,
			&entry.Position,
		); err != nil {
			return nil, fmt.Errorf("failed to scan taxonomy entry: %w", err)
		}

		if entry.Keywords, err = unmarshalStringList(keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal taxonomy keywords: %w", err)
		}

		list = append(list, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) UpsertClusterTaxonomyEntry(ctx context.Context, upsert *store.ClusterTaxonomyEntry) (*store.ClusterTaxonomyEntry, error) {
	keywords, err := marshalStringList(upsert.Keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal taxonomy keywords: %w", err)
	}

	stmt := `
		INSERT INTO cluster_taxonomy (specialty, cluster_key, label, keywords, position)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (specialty, cluster_key) DO UPDATE SET
			label = EXCLUDED.label,
			keywords = EXCLUDED.keywords,
			position = EXCLUDED.position
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.Specialty,
		upsert.ClusterKey,
		upsert.Label,
		keywords,
		upsert.Position,
	).Scan(&upsert.ID); err != nil {
		return nil, fmt.Errorf("failed to upsert taxonomy entry: %w", err)
	}

	return upsert, nil
}
