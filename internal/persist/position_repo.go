package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// PositionRow is the last known location of a player.
type PositionRow struct {
	Name      string
	MapID     uint16
	X, Y      uint8
	Heading   uint8
	UpdatedAt time.Time
}

type PositionRepo struct {
	db *DB
}

func NewPositionRepo(db *DB) *PositionRepo {
	return &PositionRepo{db: db}
}

// Load returns the stored position of name, or nil when none is stored.
func (r *PositionRepo) Load(ctx context.Context, name string) (*PositionRow, error) {
	var (
		row           PositionRow
		mapID         int32
		x, y, heading int16
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, map_id, x, y, heading, updated_at
		 FROM player_positions WHERE name = $1`, name,
	).Scan(&row.Name, &mapID, &x, &y, &heading, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load position %s: %w", name, err)
	}
	row.MapID = uint16(mapID)
	row.X, row.Y, row.Heading = uint8(x), uint8(y), uint8(heading)
	return &row, nil
}

const upsertPosition = `INSERT INTO player_positions (name, map_id, x, y, heading, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (name) DO UPDATE SET
	    map_id = EXCLUDED.map_id, x = EXCLUDED.x, y = EXCLUDED.y,
	    heading = EXCLUDED.heading, updated_at = EXCLUDED.updated_at`

// Save stores one position.
func (r *PositionRepo) Save(ctx context.Context, row PositionRow) error {
	_, err := r.db.Pool.Exec(ctx, upsertPosition,
		row.Name, int32(row.MapID), int16(row.X), int16(row.Y), int16(row.Heading))
	if err != nil {
		return fmt.Errorf("save position %s: %w", row.Name, err)
	}
	return nil
}

// SaveBatch stores many positions in one round trip.
func (r *PositionRepo) SaveBatch(ctx context.Context, rows []PositionRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(upsertPosition,
			row.Name, int32(row.MapID), int16(row.X), int16(row.Y), int16(row.Heading))
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save positions: %w", err)
		}
	}
	return nil
}

// Delete forgets the stored position of name.
func (r *PositionRepo) Delete(ctx context.Context, name string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM player_positions WHERE name = $1`, name)
	return err
}
