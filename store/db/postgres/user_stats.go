package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/medrecall/medrecall/store"
)

func (d *DB) IncrementUserStat(ctx context.Context, increment *store.IncrementUserStat) error {
	initialAverage := int32(0)
	if increment.ItemKind == store.ItemKindCase {
		initialAverage = increment.ScoreDelta
	} else {
		initialAverage = increment.CorrectDelta * 100
	}

	stmt := `
		INSERT INTO user_stats (
			user_id, item_kind, scope, scope_key,
			total_attempts, total_score, total_correct, average_score, last_activity_ts
		)
		VALUES ($1, $2, $3, $4, 1, $5, $6, $7, $8)
		ON CONFLICT (user_id, item_kind, scope, scope_key) DO UPDATE SET
			total_attempts = user_stats.total_attempts + 1,
			total_score = user_stats.total_score + EXCLUDED.total_score,
			total_correct = user_stats.total_correct + EXCLUDED.total_correct,
			average_score = CASE WHEN user_stats.item_kind = 'case'
				THEN CAST(ROUND((user_stats.total_score + EXCLUDED.total_score)::numeric / (user_stats.total_attempts + 1)) AS INTEGER)
				ELSE CAST(ROUND((user_stats.total_correct + EXCLUDED.total_correct)::numeric * 100 / (user_stats.total_attempts + 1)) AS INTEGER)
			END,
			last_activity_ts = EXCLUDED.last_activity_ts`

	if _, err := d.db.ExecContext(ctx, stmt,
		increment.UserID,
		increment.ItemKind,
		increment.Scope,
		increment.ScopeKey,
		increment.ScoreDelta,
		increment.CorrectDelta,
		initialAverage,
		increment.ActivityTs,
	); err != nil {
		return fmt.Errorf("failed to increment user stat: %w", err)
	}

	return nil
}

func (d *DB) ListUserStats(ctx context.Context, find *store.FindUserStat) ([]*store.UserStat, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.UserID; v != nil {
		where, args = append(where, "user_stats.user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ItemKind; v != nil {
		where, args = append(where, "user_stats.item_kind = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Scope; v != nil {
		where, args = append(where, "user_stats.scope = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ScopeKey; v != nil {
		where, args = append(where, "user_stats.scope_key = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT
			id, user_id, item_kind, scope, scope_key,
			total_attempts, total_score, total_correct, average_score, last_activity_ts
		FROM user_stats
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY user_stats.user_id ASC, user_stats.id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user stats: %w", err)
	}
	defer rows.Close()

	list := make([]*store.UserStat, 0)
	for rows.Next() {
		var stat store.UserStat
		if err := rows.Scan(
			&stat.ID,
			&stat.UserID,
			&stat.ItemKind,
			&stat.Scope,
			&stat.ScopeKey,
			&stat.TotalAttempts,
			&stat.TotalScore,
			&stat.TotalCorrect,
			&stat.AverageScore,
			&stat.LastActivityTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user stat: %w", err)
		}
		list = append(list, &stat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
