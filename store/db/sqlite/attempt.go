package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/medrecall/medrecall/store"
)

func (d *DB) CreateAttemptRecord(ctx context.Context, create *store.AttemptRecord) (*store.AttemptRecord, error) {
	fields := []string{"uid", "user_id", "item_id", "item_kind", "specialty", "difficulty", "score", "correct"}
	args := []any{create.UID, create.UserID, create.ItemID, create.ItemKind, create.Specialty, create.Difficulty, create.Score, create.Correct}

	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		args = append(args, create.CreatedTs)
	}

	stmt := `INSERT INTO attempt_record (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts`

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.CreatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create attempt record: %w", err)
	}

	return create, nil
}

func (d *DB) ListAttemptRecords(ctx context.Context, find *store.FindAttemptRecord) ([]*store.AttemptRecord, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.UserID; v != nil {
		where, args = append(where, "attempt_record.user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ItemID; v != nil {
		where, args = append(where, "attempt_record.item_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ItemKind; v != nil {
		where, args = append(where, "attempt_record.item_kind = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Specialty; v != nil {
		where, args = append(where, "attempt_record.specialty = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Difficulty; v != nil {
		where, args = append(where, "attempt_record.difficulty = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ClusterKey; v != nil {
		// Cluster membership lives in the resolver's memoization table.
		where, args = append(where, `EXISTS (
			SELECT 1 FROM context_cluster_mapping
			WHERE context_cluster_mapping.context_type = attempt_record.item_kind
				AND context_cluster_mapping.context_id = CAST(attempt_record.item_id AS TEXT)
				AND context_cluster_mapping.cluster_key = `+placeholder(len(args)+1)+`
		)`), append(args, *v)
	}

	orderBy := "ORDER BY attempt_record.created_ts ASC, attempt_record.id ASC"
	if find.OrderByCreatedTsDesc {
		orderBy = "ORDER BY attempt_record.created_ts DESC, attempt_record.id DESC"
	}

	query := `
		SELECT
			id, uid, user_id, item_id, item_kind, specialty, difficulty, score, correct, created_ts
		FROM attempt_record
		WHERE ` + strings.Join(where, " AND ") + ` ` + orderBy

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt records: %w", err)
	}
	defer rows.Close()

	list := make([]*store.AttemptRecord, 0)
	for rows.Next() {
		var attempt store.AttemptRecord
		var score sql.NullInt64
		var correct sql.NullBool

		if err := rows.Scan(
			&attempt.ID,
			&attempt.UID,
			&attempt.UserID,
			&attempt.ItemID,
			&attempt.ItemKind,
			&attempt.Specialty,
			&attempt.Difficulty,
			&score,
			&correct,
			&attempt.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attempt record: %w", err)
		}

		if score.Valid {
			v := int32(score.Int64)
			attempt.Score = &v
		}
		if correct.Valid {
			v := correct.Bool
			attempt.Correct = &v
		}

		list = append(list, &attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
