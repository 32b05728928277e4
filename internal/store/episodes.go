package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nidhogg/cerebro-cortex/internal/memory"
)

const episodeColumns = `id, tenant_id, title, agent_id, session_id, overall_valence,
	peak_arousal, consolidated, started_at, ended_at`

func scanEpisode(row pgx.Row) (*memory.Episode, error) {
	var e memory.Episode
	var valence string
	err := row.Scan(&e.ID, &e.TenantID, &e.Title, &e.AgentID, &e.SessionID, &valence,
		&e.PeakArousal, &e.Consolidated, &e.StartedAt, &e.EndedAt)
	if err != nil {
		return nil, err
	}
	e.OverallValence = memory.ParseValenceOr(valence, memory.ValenceNeutral)
	return &e, nil
}

func (s *Store) CreateEpisode(ctx context.Context, e *memory.Episode) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	if e.OverallValence == "" {
		e.OverallValence = memory.ValenceNeutral
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO episodes (`+episodeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.TenantID, e.Title, e.AgentID, e.SessionID, string(e.OverallValence),
		e.PeakArousal, e.Consolidated, e.StartedAt, e.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("create episode: %w", err)
	}
	return nil
}

// GetEpisode loads an episode with its steps in position order. It returns
// (nil, nil) when the episode does not exist.
func (s *Store) GetEpisode(ctx context.Context, tenantID, id string) (*memory.Episode, error) {
	e, err := scanEpisode(s.db.QueryRow(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode %s: %w", id, err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT episode_id, memory_id, position, role, created_at
		FROM episode_steps WHERE episode_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("episode steps %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var st memory.EpisodeStep
		if err := rows.Scan(&st.EpisodeID, &st.MemoryID, &st.Position, &st.Role, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		e.Steps = append(e.Steps, st)
	}
	return e, rows.Err()
}

// AddEpisodeStep appends step. A zero Position takes the next free slot.
func (s *Store) AddEpisodeStep(ctx context.Context, tenantID string, step *memory.EpisodeStep) error {
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO episode_steps (episode_id, memory_id, position, role, created_at)
		SELECT e.id, $3::text,
			CASE WHEN $4::int > 0 THEN $4::int
			     ELSE COALESCE((SELECT MAX(position) FROM episode_steps WHERE episode_id = e.id), 0) + 1 END,
			$5::text, $6::timestamptz
		FROM episodes e WHERE e.tenant_id = $1 AND e.id = $2
		RETURNING position`,
		tenantID, step.EpisodeID, step.MemoryID, step.Position, step.Role, step.CreatedAt,
	).Scan(&step.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("episode %s: %w", step.EpisodeID, memory.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("add episode step: %w", err)
	}
	return nil
}

func (s *Store) UpdateEpisode(ctx context.Context, e *memory.Episode) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE episodes SET
			title = $3, overall_valence = $4, peak_arousal = $5,
			consolidated = $6, ended_at = $7
		WHERE tenant_id = $1 AND id = $2`,
		e.TenantID, e.ID, e.Title, string(e.OverallValence), e.PeakArousal,
		e.Consolidated, e.EndedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update episode %s: %w", e.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListEpisodes returns episodes newest first, without steps.
func (s *Store) ListEpisodes(ctx context.Context, tenantID string, limit int) ([]*memory.Episode, error) {
	q := psql().Select(episodeColumns).From("episodes").
		Where("tenant_id = ?", tenantID).
		OrderBy("started_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list episodes: %w", err)
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var out []*memory.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
