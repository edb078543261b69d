package sensors

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skobkin/rfmgo/internal/bus"
	"github.com/skobkin/rfmgo/internal/events"
)

// WriteQueue serializes persistence writes from async events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

// StartDiscovery records every sensor heard during a run.
func StartDiscovery(ctx context.Context, b bus.MessageBus, queue WriteQueue, store Store, logger *slog.Logger) {
	sub := b.Subscribe(events.TopicMessage)

	go func() {
		defer b.Unsubscribe(sub, events.TopicMessage)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				received, ok := raw.(events.MessageReceived)
				if !ok {
					continue
				}
				sensor := NewSensor(received.Message.Header, received.At.UTC())
				queue.Enqueue("append_sensor", func(writeCtx context.Context) error {
					added, err := AppendIfAbsent(writeCtx, store, sensor)
					if err != nil {
						return err
					}
					id := fmt.Sprintf("0x%X", sensor.SensorID)
					if added {
						logger.Info("new sensor detected", "sensor_id", id, "product_type", sensor.ProductType)
					} else {
						logger.Debug("existing sensor detected", "sensor_id", id)
					}
					return nil
				})
			}
		}
	}()
}
