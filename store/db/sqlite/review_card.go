package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/medrecall/medrecall/store"
)

func (d *DB) UpsertReviewCard(ctx context.Context, upsert *store.ReviewCard) (*store.ReviewCard, error) {
	stmt := `
		INSERT INTO review_card (
			user_id, item_id, item_kind, repetitions, ease_factor, interval_days, next_review_ts, last_reviewed_ts
		)
		VALUES (` + placeholders(8) + `)
		ON CONFLICT (user_id, item_id, item_kind) DO UPDATE SET
			repetitions = EXCLUDED.repetitions,
			ease_factor = EXCLUDED.ease_factor,
			interval_days = EXCLUDED.interval_days,
			next_review_ts = EXCLUDED.next_review_ts,
			last_reviewed_ts = EXCLUDED.last_reviewed_ts,
			updated_ts = strftime('%s', 'now')
		RETURNING id, repetitions, ease_factor, interval_days, next_review_ts, last_reviewed_ts, created_ts, updated_ts`

	var lastReviewedTs sql.NullInt64
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.UserID,
		upsert.ItemID,
		upsert.ItemKind,
		upsert.Repetitions,
		upsert.EaseFactor,
		upsert.IntervalDays,
		upsert.NextReviewTs,
		upsert.LastReviewedTs,
	).Scan(
		&upsert.ID,
		&upsert.Repetitions,
		&upsert.EaseFactor,
		&upsert.IntervalDays,
		&upsert.NextReviewTs,
		&lastReviewedTs,
		&upsert.CreatedTs,
		&upsert.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert review card: %w", err)
	}
	if lastReviewedTs.Valid {
		upsert.LastReviewedTs = &lastReviewedTs.Int64
	}

	return upsert, nil
}

func (d *DB) ListReviewCards(ctx context.Context, find *store.FindReviewCard) ([]*store.ReviewCard, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.UserID; v != nil {
		where, args = append(where, "review_card.user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ItemID; v != nil {
		where, args = append(where, "review_card.item_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ItemKind; v != nil {
		where, args = append(where, "review_card.item_kind = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.DueBeforeTs; v != nil {
		where, args = append(where, "review_card.next_review_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT
			id, user_id, item_id, item_kind, repetitions, ease_factor, interval_days,
			next_review_ts, last_reviewed_ts, created_ts, updated_ts
		FROM review_card
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY review_card.next_review_ts ASC, review_card.id ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query review cards: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ReviewCard, 0)
	for rows.Next() {
		var card store.ReviewCard
		var lastReviewedTs sql.NullInt64

		if err := rows.Scan(
			&card.ID,
			&card.UserID,
			&card.ItemID,
			&card.ItemKind,
			&card.Repetitions,
			&card.EaseFactor,
			&card.IntervalDays,
			&card.NextReviewTs,
			&lastReviewedTs,
			&card.CreatedTs,
			&card.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review card: %w", err)
		}

		if lastReviewedTs.Valid {
			card.LastReviewedTs = &lastReviewedTs.Int64
		}

		list = append(list, &card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
