package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"duet/internal/scene"
	"duet/internal/services"
)

// Create inserts p as a new DRAFT project and returns the stored copy.
func (s *Store) Create(ctx context.Context, p *Project) (*Project, error) {
	if p == nil {
		return nil, errors.New("project is nil")
	}
	if strings.TrimSpace(p.Topic) == "" {
		return nil, errors.New("topic is required")
	}
	if p.QuestionerRef == "" || p.ExplainerRef == "" {
		return nil, errors.New("both character references are required")
	}
	scriptJSON, err := encodeScript(p.Script)
	if err != nil {
		return nil, err
	}
	timestamp := formatTime(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO projects (
            topic, style, questioner_ref, explainer_ref, background_ref, music_ref,
            target_duration_seconds, document_context, status, script_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Topic,
		p.Style,
		p.QuestionerRef,
		p.ExplainerRef,
		nullableString(p.BackgroundRef),
		nullableString(p.MusicRef),
		p.TargetDurationSeconds,
		nullableString(p.DocumentContext),
		StatusDraft,
		scriptJSON,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a project and its scenes. It returns nil when no project has id.
func (s *Store) Get(ctx context.Context, id int64) (*Project, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if p.Scenes, err = s.loadScenes(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) loadScenes(ctx context.Context, projectID int64) ([]scene.VideoScene, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE project_id = ? ORDER BY scene_number`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []scene.VideoScene
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		scenes = append(scenes, sc)
	}
	return scenes, rows.Err()
}

// Update persists every field of p and replaces its scenes in one transaction.
// A status change must be permitted from the stored status, and p must
// satisfy Validate.
func (s *Store) Update(ctx context.Context, p *Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	scriptJSON, err := encodeScript(p.Script)
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var stored string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM projects WHERE id = ?`, p.ID).Scan(&stored); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("project %d not found", p.ID)
			}
			return err
		}
		if from := Status(stored); from != p.Status && !CanTransition(from, p.Status) {
			return fmt.Errorf("%s -> %s: %w", from, p.Status, ErrIllegalTransition)
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE projects
             SET topic = ?, style = ?, questioner_ref = ?, explainer_ref = ?, background_ref = ?,
                 music_ref = ?, target_duration_seconds = ?, document_context = ?, status = ?,
                 script_json = ?, voiceover_path = ?, output_path = ?, error_message = ?,
                 error_kind = ?, duration_seconds = ?, review_notes = ?, reviewed_by = ?,
                 reviewed_at = ?, updated_at = ?
             WHERE id = ?`,
			p.Topic,
			p.Style,
			p.QuestionerRef,
			p.ExplainerRef,
			nullableString(p.BackgroundRef),
			nullableString(p.MusicRef),
			p.TargetDurationSeconds,
			nullableString(p.DocumentContext),
			p.Status,
			scriptJSON,
			nullableString(p.VoiceoverPath),
			nullableString(p.OutputPath),
			nullableString(p.ErrorMessage),
			nullableString(p.ErrorKind),
			nullableFloat(p.DurationSeconds),
			nullableString(p.ReviewNotes),
			nullableString(p.ReviewedBy),
			nullableTime(p.ReviewedAt),
			formatTime(p.UpdatedAt),
			p.ID,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE project_id = ?`, p.ID); err != nil {
			return err
		}
		for _, sc := range p.Scenes {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO scenes (project_id, `+sceneColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID,
				sc.Number,
				string(sc.Role),
				sc.SpeakerName,
				sc.Text,
				nullableString(sc.Pose),
				nullableFloat(sc.StartSeconds),
				nullableFloat(sc.DurationSeconds),
				nullableStringPtr(sc.BackgroundRef),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// Transition moves a project from one status to another only if it is
// still in from. It reports whether the row changed.
func (s *Store) Transition(ctx context.Context, id int64, from, to Status) (bool, error) {
	if !CanTransition(from, to) {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, ErrIllegalTransition)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		formatTime(time.Now()),
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("transition project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition project: %w", err)
	}
	return n == 1, nil
}

// List returns projects newest first, optionally filtered by status and paged.
// Scenes are not loaded.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Project, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if len(opts.Statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(opts.Statuses)) + `)`
		for _, status := range opts.Statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(opts.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Counts returns the number of projects per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM projects GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// Delete removes a project and, through the foreign key, its scenes. It
// reports whether a project was removed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	return n > 0, nil
}

// FailInterrupted marks every RENDERING project FAILED. A render only stays
// in RENDERING when the process running it died.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE projects SET status = ?, error_message = ?, error_kind = ?, updated_at = ? WHERE status = ?`,
		StatusFailed,
		InterruptedReason,
		services.KindExecution,
		formatTime(time.Now()),
		StatusRendering,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted renders: %w", err)
	}
	return res.RowsAffected()
}
