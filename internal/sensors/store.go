package sensors

import (
	"context"
	"slices"
)

// Store persists the whole discovered sensor list.
type Store interface {
	ReadSensors(ctx context.Context) ([]Sensor, error)
	WriteSensors(ctx context.Context, sensors []Sensor) error
	ClearSensors(ctx context.Context) error
}

// AppendIfAbsent adds s unless a sensor with the same id is already stored.
// It reports whether s was added.
func AppendIfAbsent(ctx context.Context, store Store, s Sensor) (bool, error) {
	list, err := store.ReadSensors(ctx)
	if err != nil {
		return false, err
	}
	if slices.ContainsFunc(list, func(existing Sensor) bool { return existing.SensorID == s.SensorID }) {
		return false, nil
	}
	return true, store.WriteSensors(ctx, append(list, s))
}
