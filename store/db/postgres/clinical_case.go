package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/medrecall/medrecall/store"
)

func (d *DB) CreateCase(ctx context.Context, create *store.Case) (*store.Case, error) {
	fields := []string{"uid", "title", "description", "specialty", "difficulty", "cluster_key"}
	args := []any{create.UID, create.Title, create.Description, create.Specialty, create.Difficulty, create.ClusterKey}

	stmt := `INSERT INTO clinical_case (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	return create, nil
}

func (d *DB) ListCases(ctx context.Context, find *store.FindCase) ([]*store.Case, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "clinical_case.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "clinical_case.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Specialty; v != nil {
		where, args = append(where, "clinical_case.specialty = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, uid, title, description, specialty, difficulty, cluster_key, created_ts, updated_ts
		FROM clinical_case
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY clinical_case.id ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Case, 0)
	for rows.Next() {
		var clinicalCase store.Case
		var clusterKey sql.NullString

		if err := rows.Scan(
			&clinicalCase.ID,
			&clinicalCase.UID,
			&clinicalCase.Title,
			&clinicalCase.Description,
			&clinicalCase.Specialty,
			&clinicalCase.Difficulty,
			&clusterKey,
			&clinicalCase.CreatedTs,
			&clinicalCase.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}

		if clusterKey.Valid {
			clinicalCase.ClusterKey = &clusterKey.String
		}

		list = append(list, &clinicalCase)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
