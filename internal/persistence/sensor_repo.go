package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skobkin/rfmgo/internal/sensors"
)

// SensorRepo stores the discovered sensor list in insertion order.
type SensorRepo struct {
	db *sql.DB
}

var _ sensors.Store = (*SensorRepo)(nil)

func NewSensorRepo(db *sql.DB) *SensorRepo {
	return &SensorRepo{db: db}
}

func (r *SensorRepo) ReadSensors(ctx context.Context) ([]sensors.Sensor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sensor_id, manufacturer_id, product_id, product_type, discovered_at
		FROM sensors
		ORDER BY position, sensor_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	defer rows.Close()

	var out []sensors.Sensor
	for rows.Next() {
		var (
			s            sensors.Sensor
			discoveredMs int64
		)
		if err := rows.Scan(&s.SensorID, &s.ManufacturerID, &s.ProductID, &s.ProductType, &discoveredMs); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}
		s.DiscoveredAt = fromUnixMillis(discoveredMs)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensors: %w", err)
	}
	return out, nil
}

// WriteSensors replaces the stored list. An empty list leaves the store
// untouched; use ClearSensors to empty it.
func (r *SensorRepo) WriteSensors(ctx context.Context, list []sensors.Sensor) error {
	if len(list) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write sensors tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	//goland:noinspection SqlWithoutWhere
	if _, err := tx.ExecContext(ctx, `DELETE FROM sensors;`); err != nil {
		return fmt.Errorf("clear sensors: %w", err)
	}
	for i, s := range list {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sensors(sensor_id, manufacturer_id, product_id, product_type, discovered_at, position)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(sensor_id) DO NOTHING
		`, s.SensorID, s.ManufacturerID, s.ProductID, s.ProductType, toUnixMillis(s.DiscoveredAt), i); err != nil {
			return fmt.Errorf("insert sensor 0x%X: %w", s.SensorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write sensors tx: %w", err)
	}
	return nil
}

func (r *SensorRepo) ClearSensors(ctx context.Context) error {
	//goland:noinspection SqlWithoutWhere
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sensors;`); err != nil {
		return fmt.Errorf("clear sensors: %w", err)
	}
	return nil
}

func toUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMillis(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}
