package capture

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/gwillem/rover/pkg/motion"
)

// Header is the dataset header line. Its column order matches the order in
// which NextRow emits values.
const Header = "+33;+90;0;-33;-90;180;stop;forward;backward;left;right;\n"

// Exporter converts the capture file into dataset text, one row per record.
//
// Rows are produced lazily, forward only. Read exposes the same sequence,
// header first, as an io.Reader that fills caller buffers of any size.
type Exporter struct {
	store *Store

	mu         sync.Mutex
	pending    []byte // unsent tail of the current line
	headerSent bool
	exhausted  bool
	rec        [RecordSize]byte
}

// NewExporter creates an exporter on store.
func NewExporter(store *Store) *Exporter {
	return &Exporter{store: store}
}

// BeginRead opens a Reading session at the start of the capture file. It
// fails with ErrSessionBusy if any session is already active.
func (e *Exporter) BeginRead() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.begin(Reading); err != nil {
		return err
	}
	e.reset()
	return nil
}

// EndRead closes the Reading session. It is a no-op when not reading.
func (e *Exporter) EndRead() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.store.end(Reading)
	e.reset()
	return err
}

func (e *Exporter) reset() {
	e.pending = e.pending[:0]
	e.headerSent = false
	e.exhausted = false
}

// Header returns the dataset header line.
func (e *Exporter) Header() string {
	return Header
}

// NextRow returns the next dataset row. ok is false once the records are
// exhausted; this is not an error and repeats on every later call. A
// trailing partial record counts as end of data.
func (e *Exporter) NextRow() (row string, ok bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextRowLocked()
}

func (e *Exporter) nextRowLocked() (string, bool, error) {
	if e.exhausted {
		if e.store.Session() != Reading {
			return "", false, ErrNotReading
		}
		return "", false, nil
	}

	var readErr error
	active, err := e.store.with(Reading, func(f afero.File) error {
		_, readErr = io.ReadFull(f, e.rec[:])
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			return nil
		}
		return readErr
	})
	if !active {
		return "", false, ErrNotReading
	}
	if err != nil {
		e.store.fail(err)
		e.exhausted = true
		return "", false, fmt.Errorf("read capture record: %w", err)
	}
	if readErr != nil {
		e.exhausted = true
		return "", false, nil
	}

	return FormatRow(DecodeRecord(e.rec[:])), true, nil
}

// Read fills p with the header followed by rows. A row that does not fit is
// held back and continues on the next call, so output boundaries need not
// line up with rows. Read returns io.EOF once every row has been delivered.
func (e *Exporter) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}

	n := 0
	for n < len(p) {
		if len(e.pending) == 0 {
			if !e.headerSent {
				if e.store.Session() != Reading {
					return n, ErrNotReading
				}
				e.pending = append(e.pending[:0], Header...)
				e.headerSent = true
			} else {
				row, ok, err := e.nextRowLocked()
				if err != nil {
					return n, err
				}
				if !ok {
					if n == 0 {
						return 0, io.EOF
					}
					return n, nil
				}
				e.pending = append(e.pending[:0], row...)
			}
		}
		c := copy(p[n:], e.pending)
		n += c
		e.pending = e.pending[c:]
	}
	return n, nil
}

// FormatRow renders a record as a dataset row: each feature with three
// decimals, then the command one-hot encoded in ordinal order.
func FormatRow(rec Record) string {
	var sb strings.Builder
	for _, v := range rec.Features {
		sb.WriteString(strconv.FormatFloat(v, 'f', 3, 64))
		sb.WriteByte(';')
	}
	for _, c := range motion.AllCommands() {
		if rec.Command == c {
			sb.WriteString("1;")
		} else {
			sb.WriteString("0;")
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}
