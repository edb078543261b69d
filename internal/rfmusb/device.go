// Package rfmusb drives an RfmUsb dongle: an RFM69 radio behind a USB serial
// port that speaks a line-oriented command protocol.
package rfmusb

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/skobkin/rfmgo/internal/radio"
)

const (
	DefaultBaudRate       = 230400
	DefaultCommandTimeout = 5 * time.Second

	serialReadTimeout = 300 * time.Millisecond
	interruptPrefix   = "DIO PIN CHANGE"
)

var (
	ErrNotOpen        = errors.New("rfmusb is not open")
	ErrCommandTimeout = errors.New("rfmusb command timed out")
)

// CommandError is a command the firmware answered with an error line.
type CommandError struct {
	Command  string
	Response string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("rfmusb command %q failed: %s", e.Command, e.Response)
}

type opener func(portName string, baudRate int) (io.ReadWriteCloser, error)

func openSerial(portName string, baudRate int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", portName, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set serial read timeout: %w", err)
	}
	return port, nil
}

// Device implements radio.Driver on top of the RfmUsb serial protocol.
type Device struct {
	logger   *slog.Logger
	portName string
	baudRate int
	timeout  time.Duration
	open     opener

	mu       sync.Mutex
	port     io.ReadWriteCloser
	lines    chan string
	readDone chan struct{}
	callback func()

	cmdMu sync.Mutex
}

var _ radio.Driver = (*Device)(nil)

func NewDevice(logger *slog.Logger, portName string, baudRate int, timeout time.Duration) *Device {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Device{
		logger:   logger,
		portName: portName,
		baudRate: baudRate,
		timeout:  timeout,
		open:     openSerial,
	}
}

func (d *Device) PortName() string {
	return d.portName
}

func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port != nil {
		return nil
	}
	if d.portName == "" {
		return errors.New("serial port is empty")
	}

	port, err := d.open(d.portName, d.baudRate)
	if err != nil {
		return err
	}
	d.port = port
	d.lines = make(chan string, 16)
	d.readDone = make(chan struct{})
	go d.readLoop(port, d.lines, d.readDone)

	d.logger.Debug("serial port opened", "port", d.portName, "baud", d.baudRate)
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	port, done := d.port, d.readDone
	d.port = nil
	d.mu.Unlock()
	if port == nil {
		return nil
	}

	err := port.Close()
	<-done
	d.logger.Debug("serial port closed", "port", d.portName)
	return err
}

// OnInterrupt installs fn as the DIO change callback. It runs on the reader
// goroutine and must not issue commands.
func (d *Device) OnInterrupt(fn func()) {
	d.mu.Lock()
	d.callback = fn
	d.mu.Unlock()
}

func (d *Device) readLoop(port io.Reader, lines chan<- string, done chan<- struct{}) {
	defer close(done)
	defer close(lines)

	buf := make([]byte, 256)
	var pending strings.Builder
	for {
		n, err := port.Read(buf)
		for _, b := range buf[:n] {
			switch b {
			case '\r':
			case '\n':
				d.dispatch(pending.String())
				pending.Reset()
			default:
				pending.WriteByte(b)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				d.logger.Debug("serial read stopped", "error", err)
			}
			return
		}
	}
}

func (d *Device) dispatch(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if strings.HasPrefix(line, interruptPrefix) {
		d.mu.Lock()
		cb := d.callback
		d.mu.Unlock()
		if cb == nil {
			d.logger.Debug("interrupt without callback", "line", line)
			return
		}
		cb()
		return
	}

	d.mu.Lock()
	lines := d.lines
	d.mu.Unlock()
	select {
	case lines <- line:
	default:
		d.logger.Warn("dropping unsolicited response", "line", line)
	}
}

// command writes one command line and returns the firmware's reply.
func (d *Device) command(format string, args ...any) (string, error) {
	cmd := fmt.Sprintf(format, args...)

	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	d.mu.Lock()
	port, lines := d.port, d.lines
	d.mu.Unlock()
	if port == nil {
		return "", ErrNotOpen
	}

	for drained := false; !drained; {
		select {
		case stale := <-lines:
			d.logger.Debug("discarding stale response", "line", stale)
		default:
			drained = true
		}
	}

	if _, err := io.WriteString(port, cmd+"\n"); err != nil {
		return "", fmt.Errorf("write %q: %w", cmd, err)
	}

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()
	select {
	case resp, ok := <-lines:
		if !ok {
			return "", fmt.Errorf("%q: %w", cmd, io.ErrUnexpectedEOF)
		}
		if strings.HasPrefix(resp, "ERROR") {
			return "", &CommandError{Command: cmd, Response: resp}
		}
		return resp, nil
	case <-timer.C:
		return "", fmt.Errorf("%q: %w", cmd, ErrCommandTimeout)
	}
}

// set runs a command that answers with OK.
func (d *Device) set(format string, args ...any) error {
	resp, err := d.command(format, args...)
	if err != nil {
		return err
	}
	if resp != "OK" {
		return &CommandError{Command: fmt.Sprintf(format, args...), Response: resp}
	}
	return nil
}
