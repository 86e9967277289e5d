package db

import (
	"context"

	"github.com/bwise1/ride_pinpoint/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// RecentPlacesSchema creates the table RecentPlaceRepo writes to. Requires PostGIS.
const RecentPlacesSchema = `
CREATE TABLE IF NOT EXISTS recent_places (
    id           BIGSERIAL PRIMARY KEY,
    user_id      UUID NOT NULL,
    field        TEXT NOT NULL,
    display_text TEXT NOT NULL,
    full_address TEXT NOT NULL DEFAULT '',
    location     GEOGRAPHY(POINT, 4326) NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS recent_places_user_created_idx ON recent_places (user_id, created_at DESC);
`

const (
	DefaultRecentLimit = 10
	// rows kept per user; older ones are pruned on insert
	recentKeep = 50
)

// RecentPlaceRepo stores the suggestions riders pick.
type RecentPlaceRepo struct {
	db *DB
}

func NewRecentPlaceRepo(db *DB) *RecentPlaceRepo {
	return &RecentPlaceRepo{db: db}
}

func (r *RecentPlaceRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.Pool().Exec(ctx, RecentPlacesSchema); err != nil {
		return errors.Wrap(err, "creating recent_places")
	}
	return nil
}

// RecordSelection inserts a picked suggestion and prunes the user's history.
func (r *RecentPlaceRepo) RecordSelection(ctx context.Context, userID string, field model.LocationField, s model.AddressSuggestion, coord model.Coordinate) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return errors.Wrap(err, "invalid user id")
	}

	return r.db.RunInTx(ctx, func(tx pgx.Tx) error {
		stmt := `
			INSERT INTO recent_places (user_id, field, display_text, full_address, location)
			VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326))
		`
		if _, err := tx.Exec(ctx, stmt, uid, field.String(), s.DisplayText, s.FullAddress, coord.Longitude, coord.Latitude); err != nil {
			return errors.Wrap(err, "inserting recent place")
		}

		prune := `
			DELETE FROM recent_places
			WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM recent_places WHERE user_id = $1
				ORDER BY created_at DESC, id DESC LIMIT $2
			)
		`
		if _, err := tx.Exec(ctx, prune, uid, recentKeep); err != nil {
			return errors.Wrap(err, "pruning recent places")
		}
		return nil
	})
}

// ListRecent returns the newest selections first.
func (r *RecentPlaceRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]model.RecentPlaceResponse, error) {
	if limit <= 0 || limit > recentKeep {
		limit = DefaultRecentLimit
	}
	stmt := `
		SELECT id, field, display_text, full_address,
		       ST_X(location::geometry) AS longitude,
		       ST_Y(location::geometry) AS latitude
		FROM recent_places
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Pool().Query(ctx, stmt, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "getting recent places")
	}
	defer rows.Close()

	places := []model.RecentPlaceResponse{}
	for rows.Next() {
		var (
			p     model.RecentPlaceResponse
			field string
		)
		if err := rows.Scan(&p.ID, &field, &p.DisplayText, &p.FullAddress, &p.Longitude, &p.Latitude); err != nil {
			return nil, errors.Wrap(err, "scanning recent place")
		}
		p.Field, _ = model.ParseLocationField(field)
		places = append(places, p)
	}
	return places, rows.Err()
}
