package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/advising-api/internal/models"
)

// TrackRepository reads operator-seeded tracks and their course requirements.
type TrackRepository struct {
	db *sqlx.DB
}

// NewTrackRepository constructs a TrackRepository.
func NewTrackRepository(db *sqlx.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// List returns every track ordered by ID.
func (r *TrackRepository) List(ctx context.Context) ([]models.Track, error) {
	var tracks []models.Track
	if err := r.db.SelectContext(ctx, &tracks, `SELECT id, name FROM tracks ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	return tracks, nil
}

// FindByNames returns the tracks whose names are in names. Missing names are simply absent.
func (r *TrackRepository) FindByNames(ctx context.Context, names []string) ([]models.Track, error) {
	if len(names) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, name FROM tracks WHERE name IN (?)`, names)
	if err != nil {
		return nil, fmt.Errorf("build track lookup: %w", err)
	}
	var tracks []models.Track
	if err := r.db.SelectContext(ctx, &tracks, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find tracks by name: %w", err)
	}
	return tracks, nil
}

// ListRequirements returns live requirements for the given tracks joined with course data.
func (r *TrackRepository) ListRequirements(ctx context.Context, trackIDs []int64) ([]models.TrackRequirementDetail, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT tr.id, tr.course_id, tr.track_id, tr.course_type, t.name AS track_name,
        c.code, c.name, c.credits, c.open_year, c.open_semester
        FROM track_requirements tr
        JOIN tracks t ON t.id = tr.track_id
        JOIN courses c ON c.id = tr.course_id
        WHERE tr.track_id IN (?) AND tr.deleted_at IS NULL AND c.deleted_at IS NULL
        ORDER BY c.open_year, c.open_semester, c.code, tr.track_id`, trackIDs)
	if err != nil {
		return nil, fmt.Errorf("build requirement lookup: %w", err)
	}
	var reqs []models.TrackRequirementDetail
	if err := r.db.SelectContext(ctx, &reqs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list track requirements: %w", err)
	}
	return reqs, nil
}
