package db

import (
	"context"

	"swellwatch/internal/types"
)

// LocationRepository provides data access for the locations table.
type LocationRepository struct {
	db DBTX
}

// NewLocationRepository creates a LocationRepository backed by the given
// database connection (pool or transaction).
func NewLocationRepository(db DBTX) *LocationRepository {
	return &LocationRepository{db: db}
}

// List returns monitored locations ordered by id. A limit greater than zero
// caps the result; zero or negative means all locations.
func (r *LocationRepository) List(ctx context.Context, limit int) ([]types.Location, error) {
	query := `SELECT id, latitude, longitude, name FROM locations ORDER BY id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list locations", err)
	}
	defer rows.Close()

	var locations []types.Location
	for rows.Next() {
		var loc types.Location
		if err := rows.Scan(&loc.ID, &loc.Latitude, &loc.Longitude, &loc.Name); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan location row", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate location rows", err)
	}

	return locations, nil
}

// defaultLocations are the inner-Oslofjord spots seeded on first run.
var defaultLocations = []types.Location{
	{ID: 1, Latitude: 59.873972, Longitude: 10.74493, Name: "Malmøya-nord"},
	{ID: 2, Latitude: 59.859773, Longitude: 10.75167, Name: "Malmøya-sør"},
	{ID: 3, Latitude: 59.884846, Longitude: 10.69528, Name: "Nakkholmen-sør"},
	{ID: 4, Latitude: 59.847316, Longitude: 10.57949, Name: "Gåsøya-sør"},
}

// Seed creates the locations table if needed and inserts the default spots.
// Existing rows are left untouched, so Seed is safe to run repeatedly.
func (r *LocationRepository) Seed(ctx context.Context) error {
	_, err := r.db.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS locations (
		   id BIGINT PRIMARY KEY,
		   latitude DOUBLE PRECISION NOT NULL,
		   longitude DOUBLE PRECISION NOT NULL,
		   name TEXT NOT NULL
		 )`)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create locations table", err)
	}

	for _, loc := range defaultLocations {
		_, err := r.db.Exec(ctx,
			`INSERT INTO locations (id, latitude, longitude, name)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO NOTHING`,
			loc.ID, loc.Latitude, loc.Longitude, loc.Name,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to seed location "+loc.Name, err)
		}
	}
	return nil
}
