package radio

import (
	"time"

	"github.com/skobkin/rfmgo/internal/ota"
)

// otaLink lends the session to a firmware transfer. It waits on interrupts
// only, so a stop request stays pending until the transfer returns.
type otaLink struct {
	session *Session
}

func (s *Session) otaLink() ota.Link {
	return &otaLink{session: s}
}

func (l *otaLink) SetOutputPower(dbm int8) error {
	return l.session.SetOutputPower(dbm)
}

func (l *otaLink) Transmit(payload []byte) error {
	return l.session.Transmit(payload)
}

func (l *otaLink) Receive(timeout time.Duration) ([]byte, error) {
	if err := l.session.SetMode(ModeReceiving); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if err := l.session.SetMode(ModeStandby); err != nil {
				return nil, err
			}
			return nil, ota.ErrTimeout
		}
		if !l.session.mux.WaitIrq(remaining) {
			continue
		}
		flags, err := l.session.IrqFlags()
		if err != nil {
			return nil, err
		}
		if !flags.Has(IrqPayloadReady) {
			continue
		}
		if err := l.session.SetMode(ModeStandby); err != nil {
			return nil, err
		}
		return l.session.ReadPayload()
	}
}
