package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medrecall/medrecall/store"
)

func (d *DB) CreateQuestion(ctx context.Context, create *store.Question) (*store.Question, error) {
	options := create.Options
	if options == nil {
		options = []store.QuestionOption{}
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal question options: %w", err)
	}

	fields := []string{"uid", "stem", "explanation", "specialty", "difficulty", "cluster_key", "options"}
	args := []any{create.UID, create.Stem, create.Explanation, create.Specialty, create.Difficulty, create.ClusterKey, string(optionsJSON)}

	stmt := `INSERT INTO question (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	return create, nil
}

func (d *DB) ListQuestions(ctx context.Context, find *store.FindQuestion) ([]*store.Question, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "question.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "question.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Specialty; v != nil {
		where, args = append(where, "question.specialty = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, uid, stem, explanation, specialty, difficulty, cluster_key, options, created_ts, updated_ts
		FROM question
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY question.id ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Question, 0)
	for rows.Next() {
		var question store.Question
		var clusterKey sql.NullString
		var options string

		if err := rows.Scan(
			&question.ID,
			&question.UID,
			&question.Stem,
			&question.Explanation,
			&question.Specialty,
			&question.Difficulty,
			&clusterKey,
			&options,
			&question.CreatedTs,
			&question.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}

		if clusterKey.Valid {
			question.ClusterKey = &clusterKey.String
		}
		if err := json.Unmarshal([]byte(options), &question.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal question options: %w", err)
		}

		list = append(list, &question)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
