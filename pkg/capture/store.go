// Package capture records (features, command) samples for offline training
// and replays them as a semicolon-separated dataset.
//
// Recording and replay share one backing file. A Store hands out at most one
// session at a time: either a Recorder is writing or an Exporter is reading,
// never both.
package capture

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultPath is the capture file used when none is configured.
const DefaultPath = "capture.bin"

var (
	// ErrSessionBusy is returned when a session is requested while another
	// one is active.
	ErrSessionBusy = errors.New("capture session busy")
	// ErrNotWriting is returned for write operations outside a Writing session.
	ErrNotWriting = errors.New("capture not writing")
	// ErrNotReading is returned for read operations outside a Reading session.
	ErrNotReading = errors.New("capture not reading")
)

// Session is the access mode currently held on the backing store.
type Session int

const (
	Idle Session = iota
	Writing
	Reading
)

func (s Session) String() string {
	switch s {
	case Idle:
		return "idle"
	case Writing:
		return "writing"
	case Reading:
		return "reading"
	default:
		return fmt.Sprintf("Session(%d)", int(s))
	}
}

// Store owns the capture file and the session guarding it.
type Store struct {
	fs     afero.Fs
	path   string
	logger zerolog.Logger

	mu      sync.Mutex
	session Session
	file    afero.File
	id      string
}

// NewStore creates a store for the capture file at path on fs.
func NewStore(fs afero.Fs, path string, logger zerolog.Logger) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{
		fs:     fs,
		path:   path,
		logger: logger.With().Str("component", "capture").Str("path", path).Logger(),
	}
}

// Path returns the capture file path.
func (s *Store) Path() string {
	return s.path
}

// Session returns the current session.
func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Exists reports whether the capture file exists.
func (s *Store) Exists() bool {
	ok, err := afero.Exists(s.fs, s.path)
	return err == nil && ok
}

// Size returns the capture file size in bytes, or 0 if it does not exist.
func (s *Store) Size() int64 {
	info, err := s.fs.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// begin opens the file for want. The busy check and the transition happen
// under one lock so two requests can never both succeed.
func (s *Store) begin(want Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != Idle {
		s.logger.Debug().Stringer("active", s.session).Stringer("requested", want).Msg("capture busy")
		return ErrSessionBusy
	}

	var (
		f   afero.File
		err error
	)
	switch want {
	case Writing:
		if err := s.trimTornTail(); err != nil {
			s.logger.Error().Err(err).Msg("capture repair failed")
			return err
		}
		f, err = s.fs.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	case Reading:
		f, err = s.fs.Open(s.path)
	default:
		return fmt.Errorf("invalid session %v", want)
	}
	if err != nil {
		s.logger.Error().Err(err).Stringer("requested", want).Msg("capture file open failed")
		return fmt.Errorf("open capture file: %w", err)
	}

	s.session = want
	s.file = f
	s.id = uuid.NewString()
	s.logger.Info().Str("session", s.id).Stringer("mode", want).Msg("capture session opened")
	return nil
}

// trimTornTail cuts a partial trailing record left by an interrupted write,
// so appended records stay aligned on RecordSize.
func (s *Store) trimTornTail() error {
	info, err := s.fs.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat capture file: %w", err)
	}
	torn := info.Size() % RecordSize
	if torn == 0 {
		return nil
	}
	f, err := s.fs.OpenFile(s.path, os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open capture file: %w", err)
	}
	defer f.Close()
	if err := f.Truncate(info.Size() - torn); err != nil {
		return fmt.Errorf("truncate capture file: %w", err)
	}
	s.logger.Warn().Int64("dropped_bytes", torn).Msg("capture file ended in a partial record, trimmed")
	return nil
}

// end closes the file if the current session is want.
func (s *Store) end(want Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != want {
		return false, nil
	}
	return true, s.closeLocked()
}

// fail aborts the current session after a storage error.
func (s *Store) fail(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == Idle {
		return
	}
	s.logger.Error().Err(cause).Str("session", s.id).Stringer("mode", s.session).Msg("capture session aborted")
	_ = s.closeLocked()
}

func (s *Store) closeLocked() error {
	err := s.file.Close()
	s.logger.Info().Str("session", s.id).Stringer("mode", s.session).Msg("capture session closed")
	s.session = Idle
	s.file = nil
	s.id = ""
	if err != nil {
		return fmt.Errorf("close capture file: %w", err)
	}
	return nil
}

// with runs fn against the open file if the current session is want.
func (s *Store) with(want Session, fn func(f afero.File) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != want {
		return false, nil
	}
	return true, fn(s.file)
}

// Clear removes the capture file. It fails with ErrSessionBusy while any
// session is active.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != Idle {
		return ErrSessionBusy
	}
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove capture file: %w", err)
	}
	s.logger.Info().Msg("capture cleared")
	return nil
}
