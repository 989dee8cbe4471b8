package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type stationRepository struct {
	db DB
}

func NewStationRepository(db DB) interfaces.StationRepository {
	return &stationRepository{db: db}
}

func (r *stationRepository) Create(ctx context.Context, station *domain.Station) error {
	query := `
		INSERT INTO stations (name, kinds, status, last_seen, pours_completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		station.Name, station.Kinds, station.Status, station.LastSeen, station.PoursCompleted, station.CreatedAt,
	).Scan(&station.ID)
	if err != nil {
		return fmt.Errorf("failed to create station: %w", err)
	}
	return nil
}

func (r *stationRepository) FindByName(ctx context.Context, name string) (*domain.Station, error) {
	query := `
		SELECT id, name, kinds, status, last_seen, pours_completed, created_at
		FROM stations
		WHERE name = $1
	`

	var station domain.Station
	err := r.db.QueryRow(ctx, query, name).Scan(
		&station.ID, &station.Name, &station.Kinds, &station.Status,
		&station.LastSeen, &station.PoursCompleted, &station.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("station not found: %w", err)
	}

	return &station, nil
}

func (r *stationRepository) Update(ctx context.Context, station *domain.Station) error {
	query := `
		UPDATE stations
		SET kinds = $1, status = $2, last_seen = $3, pours_completed = $4
		WHERE id = $5
	`
	_, err := r.db.Exec(ctx, query,
		station.Kinds, station.Status, station.LastSeen, station.PoursCompleted, station.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update station: %w", err)
	}
	return nil
}

func (r *stationRepository) UpdateHeartbeat(ctx context.Context, name string) error {
	query := `
		UPDATE stations
		SET last_seen = $1, status = $2
		WHERE name = $3
	`
	_, err := r.db.Exec(ctx, query, time.Now(), domain.StationOnline, name)
	if err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}
	return nil
}

func (r *stationRepository) ListAll(ctx context.Context) ([]*domain.Station, error) {
	query := `
		SELECT id, name, kinds, status, last_seen, pours_completed, created_at
		FROM stations
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	defer rows.Close()

	var stations []*domain.Station
	for rows.Next() {
		var station domain.Station
		if err := rows.Scan(
			&station.ID, &station.Name, &station.Kinds, &station.Status,
			&station.LastSeen, &station.PoursCompleted, &station.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, &station)
	}

	return stations, nil
}

func (r *stationRepository) IncrementPoursCompleted(ctx context.Context, name string) error {
	query := `
		UPDATE stations
		SET pours_completed = pours_completed + 1
		WHERE name = $1
	`
	_, err := r.db.Exec(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to increment pours completed: %w", err)
	}
	return nil
}
