package sensors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/gwillem/rover/pkg/motion"
)

// DefaultBaudRate is the sensor board's UART speed.
const DefaultBaudRate = 115200

// StaleAfter is how long a frame stays valid. Older frames read as no
// reading at all.
const StaleAfter = 200 * time.Millisecond

// SerialRanger keeps the latest frame read from the sensor board.
type SerialRanger struct {
	port       io.ReadCloser
	logger     zerolog.Logger
	staleAfter time.Duration

	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	latest  Frame
	updated time.Time
	frames  uint64
}

// OpenSerial opens the sensor board on path.
func OpenSerial(path string, baud int, logger zerolog.Logger) (*SerialRanger, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open sensor port: %w", err)
	}
	return NewRanger(port, logger), nil
}

// NewRanger reads frames from r.
func NewRanger(r io.ReadCloser, logger zerolog.Logger) *SerialRanger {
	return &SerialRanger{
		port:       r,
		logger:     logger.With().Str("component", "sensors").Logger(),
		staleAfter: StaleAfter,
		latest:     Frame{Ranging: EmptyRanging()},
	}
}

// Run reads lines until ctx is done or the port fails. The port is closed
// and the last frame dropped on return.
func (s *SerialRanger) Run(ctx context.Context) error {
	defer s.store(Frame{Ranging: EmptyRanging()}, false)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-done:
		}
	}()
	defer s.Close()

	scan := bufio.NewScanner(s.port)
	for scan.Scan() {
		f, err := ParseFrame(scan.Bytes())
		if err != nil {
			s.logger.Debug().Err(err).Msg("skip sensor line")
			continue
		}
		s.store(f, true)
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scan.Err(); err != nil {
		return fmt.Errorf("read sensor port: %w", err)
	}
	return io.EOF
}

// Close closes the port. It is safe to call more than once.
func (s *SerialRanger) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}

func (s *SerialRanger) store(f Frame, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = f
	if fresh {
		s.updated = time.Now()
		s.frames++
	}
}

// Distances returns the most recent ranging snapshot. Sensors never heard
// from, and all sensors once the last frame is older than StaleAfter, read
// as NaN.
func (s *SerialRanger) Distances() motion.Ranging {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames > 0 && time.Since(s.updated) > s.staleAfter {
		return EmptyRanging()
	}
	return s.latest.Ranging
}

// Color returns the most recent color sensor reading.
func (s *SerialRanger) Color() [3]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest.Color
}

// Frames returns the number of frames decoded and when the last one arrived.
func (s *SerialRanger) Frames() (uint64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.updated
}
