package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/medrecall/medrecall/store"
)

// Revision notes are keyed by (user_id, specialty, difficulty, cluster_key)
// where difficulty and cluster_key may be NULL. SQLite treats NULLs as
// distinct in unique indexes, so the upsert is a select-then-write inside one
// transaction instead of ON CONFLICT. Concurrent regenerations therefore
// resolve last-write-wins, which is the intended semantics.

func noteKeyCondition(find *store.FindRevisionNote, args *[]any) []string {
	where := []string{}
	where, *args = append(where, "revision_note.user_id = "+placeholder(len(*args)+1)), append(*args, find.UserID)
	where, *args = append(where, "revision_note.specialty = "+placeholder(len(*args)+1)), append(*args, find.Specialty)
	if find.Difficulty != nil {
		where, *args = append(where, "revision_note.difficulty = "+placeholder(len(*args)+1)), append(*args, *find.Difficulty)
	} else {
		where = append(where, "revision_note.difficulty IS NULL")
	}
	if find.ClusterKey != nil {
		where, *args = append(where, "revision_note.cluster_key = "+placeholder(len(*args)+1)), append(*args, *find.ClusterKey)
	} else {
		where = append(where, "revision_note.cluster_key IS NULL")
	}
	return where
}

func (d *DB) GetRevisionNote(ctx context.Context, find *store.FindRevisionNote) (*store.RevisionNote, error) {
	args := []any{}
	where := noteKeyCondition(find, &args)

	query := `
		SELECT
			id, uid, user_id, specialty, difficulty, cluster_key,
			title, summary, key_concepts, common_mistakes, rapid_checklist, practice_plan,
			source_version, average_score, total_attempts, snapshot_ts,
			stale_ts, last_generated_ts, last_served_ts, updated_ts
		FROM revision_note
		WHERE ` + strings.Join(where, " AND ")

	note, err := scanRevisionNote(d.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get revision note: %w", err)
	}

	evidence, err := d.listRevisionNoteEvidence(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	note.Evidence = evidence
	return note, nil
}

func (d *DB) UpsertRevisionNote(ctx context.Context, upsert *store.RevisionNote) (*store.RevisionNote, error) {
	keyConcepts, err := marshalStringList(upsert.KeyConcepts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key concepts: %w", err)
	}
	commonMistakes, err := marshalStringList(upsert.CommonMistakes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal common mistakes: %w", err)
	}
	rapidChecklist, err := marshalStringList(upsert.RapidChecklist)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rapid checklist: %w", err)
	}
	practicePlan, err := marshalStringList(upsert.PracticePlan)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal practice plan: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	args := []any{}
	where := noteKeyCondition(&store.FindRevisionNote{
		UserID:     upsert.UserID,
		Specialty:  upsert.Specialty,
		Difficulty: upsert.Difficulty,
		ClusterKey: upsert.ClusterKey,
	}, &args)

	var existingID int32
	err = tx.QueryRowContext(ctx, "SELECT id FROM revision_note WHERE "+strings.Join(where, " AND "), args...).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		stmt := `
			INSERT INTO revision_note (
				uid, user_id, specialty, difficulty, cluster_key,
				title, summary, key_concepts, common_mistakes, rapid_checklist, practice_plan,
				source_version, average_score, total_attempts, snapshot_ts,
				stale_ts, last_generated_ts, last_served_ts, updated_ts
			)
			VALUES (` + placeholders(19) + `)
			RETURNING id`
		if err := tx.QueryRowContext(ctx, stmt,
			upsert.UID, upsert.UserID, upsert.Specialty, upsert.Difficulty, upsert.ClusterKey,
			upsert.Title, upsert.Summary, keyConcepts, commonMistakes, rapidChecklist, practicePlan,
			upsert.SourceVersion, upsert.AverageScore, upsert.TotalAttempts, upsert.SnapshotTs,
			upsert.StaleTs, upsert.LastGeneratedTs, upsert.LastServedTs, now,
		).Scan(&upsert.ID); err != nil {
			return nil, fmt.Errorf("failed to insert revision note: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to find revision note for upsert: %w", err)
	default:
		stmt := `
			UPDATE revision_note SET
				title = ?, summary = ?, key_concepts = ?, common_mistakes = ?, rapid_checklist = ?, practice_plan = ?,
				source_version = ?, average_score = ?, total_attempts = ?, snapshot_ts = ?,
				stale_ts = ?, last_generated_ts = ?, last_served_ts = ?, updated_ts = ?
			WHERE id = ?`
		if _, err := tx.ExecContext(ctx, stmt,
			upsert.Title, upsert.Summary, keyConcepts, commonMistakes, rapidChecklist, practicePlan,
			upsert.SourceVersion, upsert.AverageScore, upsert.TotalAttempts, upsert.SnapshotTs,
			upsert.StaleTs, upsert.LastGeneratedTs, upsert.LastServedTs, now,
			existingID,
		); err != nil {
			return nil, fmt.Errorf("failed to update revision note: %w", err)
		}
		upsert.ID = existingID
	}
	upsert.UpdatedTs = now

	// Evidence rows are replaced wholesale on every regeneration.
	if _, err := tx.ExecContext(ctx, "DELETE FROM revision_note_evidence WHERE note_id = ?", upsert.ID); err != nil {
		return nil, fmt.Errorf("failed to delete revision note evidence: %w", err)
	}
	for _, evidence := range upsert.Evidence {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO revision_note_evidence (note_id, source_type, source_id, weight)
			VALUES (?, ?, ?, ?)
			RETURNING id`,
			upsert.ID, evidence.SourceType, evidence.SourceID, evidence.Weight,
		).Scan(&evidence.ID); err != nil {
			return nil, fmt.Errorf("failed to insert revision note evidence: %w", err)
		}
		evidence.NoteID = upsert.ID
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit revision note upsert: %w", err)
	}

	return upsert, nil
}

func (d *DB) MarkRevisionNoteStale(ctx context.Context, id int32, staleTs int64) error {
	if _, err := d.db.ExecContext(ctx,
		"UPDATE revision_note SET stale_ts = ?, updated_ts = strftime('%s', 'now') WHERE id = ?",
		staleTs, id,
	); err != nil {
		return fmt.Errorf("failed to mark revision note stale: %w", err)
	}
	return nil
}

func (d *DB) TouchRevisionNoteServed(ctx context.Context, id int32, servedTs int64) error {
	if _, err := d.db.ExecContext(ctx,
		"UPDATE revision_note SET last_served_ts = ? WHERE id = ?",
		servedTs, id,
	); err != nil {
		return fmt.Errorf("failed to touch revision note: %w", err)
	}
	return nil
}

func (d *DB) listRevisionNoteEvidence(ctx context.Context, noteID int32) ([]*store.RevisionNoteEvidence, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, note_id, source_type, source_id, weight
		FROM revision_note_evidence
		WHERE note_id = ?
		ORDER BY id ASC`, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query revision note evidence: %w", err)
	}
	defer rows.Close()

	list := make([]*store.RevisionNoteEvidence, 0)
	for rows.Next() {
		var evidence store.RevisionNoteEvidence
		if err := rows.Scan(
			&evidence.ID,
			&evidence.NoteID,
			&evidence.SourceType,
			&evidence.SourceID,
			&evidence.Weight,
		); err != nil {
			return nil, fmt.Errorf("failed to scan revision note evidence: %w", err)
		}
		list = append(list, &evidence)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevisionNote(row rowScanner) (*store.RevisionNote, error) {
	var note store.RevisionNote
	var difficulty, clusterKey sql.NullString
	var keyConcepts, commonMistakes, rapidChecklist, practicePlan string
	var staleTs sql.NullInt64

	if err := row.Scan(
		&note.ID,
		&note.UID,
		&note.UserID,
		&note.Specialty,
		&difficulty,
		&clusterKey,
		&note.Title,
		&note.Summary,
		&keyConcepts,
		&commonMistakes,
		&rapidChecklist,
		&practicePlan,
		&note.SourceVersion,
		&note.AverageScore,
		&note.TotalAttempts,
		&note.SnapshotTs,
		&staleTs,
		&note.LastGeneratedTs,
		&note.LastServedTs,
		&note.UpdatedTs,
	); err != nil {
		return nil, err
	}

	if difficulty.Valid {
		note.Difficulty = &difficulty.String
	}
	if clusterKey.Valid {
		note.ClusterKey = &clusterKey.String
	}
	if staleTs.Valid {
		note.StaleTs = &staleTs.Int64
	}

	var err error
	if note.KeyConcepts, err = unmarshalStringList(keyConcepts); err != nil {
		return nil, err
	}
	if note.CommonMistakes, err = unmarshalStringList(commonMistakes); err != nil {
		return nil, err
	}
	if note.RapidChecklist, err = unmarshalStringList(rapidChecklist); err != nil {
		return nil, err
	}
	if note.PracticePlan, err = unmarshalStringList(practicePlan); err != nil {
		return nil, err
	}

	return &note, nil
}
