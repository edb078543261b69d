package radio

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/skobkin/rfmgo/internal/events"
	"github.com/skobkin/rfmgo/internal/openthings"
)

// DefaultWaitTimeout bounds a single signal wait. Expiry is RF silence, not
// an error.
const DefaultWaitTimeout = 5 * time.Second

// loop runs one operation against one session on the calling goroutine.
type loop struct {
	logger      *slog.Logger
	runID       string
	driver      Driver
	cfg         Configuration
	mux         *SignalMux
	decoder     Decoder
	table       openthings.ManufacturerTable
	op          Operation
	waitTimeout time.Duration
	events      events.Publisher
	onState     func(State)
}

func (l *loop) setState(s State) {
	if l.onState != nil {
		l.onState(s)
	}
}

func (l *loop) run() (result Result, err error) {
	result = ResultCancelled

	if pc, ok := l.op.(Prechecker); ok {
		if err := pc.Precheck(); err != nil {
			l.logger.Error("precheck failed", "operation", l.op.Name(), "error", err)
			l.setState(StateStopped)
			return ResultFailed, err
		}
	}
	if l.mux.StopRequested() {
		l.setState(StateStopped)
		return ResultCancelled, nil
	}

	session, err := AcquireSession(l.logger, l.driver, l.cfg, l.mux)
	if err != nil {
		l.setState(StateStopped)
		return ResultFailed, err
	}
	session.onTransmit = func(raw []byte) {
		l.publish(events.TopicRawFrameOut, rawFrame(raw))
	}
	defer func() {
		l.setState(StateTerminating)
		if relErr := session.Release(); relErr != nil {
			l.logger.Error("release session", "error", relErr)
			err = errors.Join(err, relErr)
		}
		l.setState(StateStopped)
	}()

	mask := DioPayloadReady
	source, hasSource := l.op.(InterruptSource)
	if hasSource {
		for _, a := range source.DioMappings() {
			if err := session.SetDioMapping(a.Pin, a.Mapping); err != nil {
				return ResultFailed, err
			}
		}
		mask |= source.InterruptMask()
	}
	if err := session.EnableInterrupts(mask); err != nil {
		return ResultFailed, err
	}
	if err := session.SetMode(ModeReceiving); err != nil {
		return ResultFailed, err
	}
	l.setState(StateReceiving)

	if starter, ok := l.op.(Starter); ok {
		r, err := starter.Begin(session)
		if err != nil {
			return ResultFailed, err
		}
		if r.Terminal() {
			l.logger.Info("operation finished", "operation", l.op.Name(), "result", r.String())
			return r, nil
		}
		if err := l.rearm(session); err != nil {
			return ResultFailed, err
		}
	}

	for {
		switch l.mux.Wait(l.waitTimeout) {
		case SignalCancel:
			l.logger.Debug("stop requested", "operation", l.op.Name())
			return ResultCancelled, nil
		case SignalNone:
			continue
		}

		flags, err := session.IrqFlags()
		if err != nil {
			return ResultFailed, err
		}
		if hasSource {
			r, err := source.HandleInterrupt(session, flags)
			if err != nil {
				return ResultFailed, err
			}
			if r.Terminal() {
				l.logger.Info("operation finished", "operation", l.op.Name(), "result", r.String())
				return r, nil
			}
		}
		if !flags.Has(IrqPayloadReady) {
			if !hasSource {
				l.logger.Debug("spurious interrupt", "flags", fmt.Sprintf("0x%04X", uint16(flags)))
			}
			if err := l.rearm(session); err != nil {
				return ResultFailed, err
			}
			continue
		}

		r, err := l.cycle(session)
		if err != nil {
			return ResultFailed, err
		}
		if r.Terminal() {
			return r, nil
		}
		if err := session.SetMode(ModeReceiving); err != nil {
			return ResultFailed, err
		}
		l.setState(StateReceiving)
	}
}

// rearm puts the radio back into receive if an operation moved it.
func (l *loop) rearm(session *Session) error {
	if session.Mode() == ModeReceiving {
		return nil
	}
	if err := session.SetMode(ModeReceiving); err != nil {
		return err
	}
	l.setState(StateReceiving)
	return nil
}

// cycle processes one ready payload with the radio held in standby.
func (l *loop) cycle(session *Session) (Result, error) {
	if err := session.SetMode(ModeStandby); err != nil {
		return ResultFailed, err
	}
	l.setState(StateProcessingPayload)

	payload, err := session.ReadPayload()
	if err != nil {
		return ResultFailed, err
	}
	l.publish(events.TopicRawFrameIn, rawFrame(payload))

	msg, err := l.decoder.Decode(payload, l.table)
	if err != nil {
		l.logger.Warn("decode payload failed", "error", err, "len", len(payload))
		return ResultContinue, nil
	}
	l.publish(events.TopicMessage, events.MessageReceived{RunID: l.runID, Message: msg, At: time.Now()})

	result, err := l.op.HandleMessage(session, msg)
	if err != nil {
		return ResultFailed, err
	}
	if result.Terminal() {
		l.logger.Info("operation finished", "operation", l.op.Name(), "result", result.String())
	}
	return result, nil
}

func (l *loop) publish(topic string, msg any) {
	if l.events == nil {
		return
	}
	l.events.Publish(topic, msg)
}

func rawFrame(b []byte) events.RawFrame {
	return events.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(b)), Len: len(b)}
}
