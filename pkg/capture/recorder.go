package capture

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/metric"

	"github.com/gwillem/rover/pkg/motion"
)

// Recorder appends samples to the capture file while enabled.
type Recorder struct {
	store   *Store
	records metric.Int64Counter
}

// NewRecorder creates a recorder on store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{
		store:   store,
		records: recordCounter(),
	}
}

// Enable opens a Writing session. It fails with ErrSessionBusy if any session
// is already active, leaving state unchanged.
func (r *Recorder) Enable() error {
	return r.store.begin(Writing)
}

// Disable closes the Writing session. It is a no-op when not writing.
func (r *Recorder) Disable() error {
	_, err := r.store.end(Writing)
	return err
}

// Enabled reports whether a Writing session is active.
func (r *Recorder) Enabled() bool {
	return r.store.Session() == Writing
}

// Clear removes the capture file. It fails with ErrSessionBusy while any
// session is active.
func (r *Recorder) Clear() error {
	return r.store.Clear()
}

// MaybeAppend writes one record if a Writing session is active and cmd is not
// Stop. Idle frames are never recorded so the dataset is not dominated by
// Stop.
//
// The record goes out in a single Write call. This narrows but does not
// close the window for a torn trailing record; readers drop any trailing
// partial record. On a write error the session is aborted.
func (r *Recorder) MaybeAppend(fv motion.FeatureVector, cmd motion.Command) (bool, error) {
	if cmd == motion.Stop || !cmd.Valid() {
		return false, nil
	}

	buf := EncodeRecord(fv, cmd)
	active, err := r.store.with(Writing, func(f afero.File) error {
		n, err := f.Write(buf)
		if err != nil {
			return err
		}
		if n != len(buf) {
			return fmt.Errorf("short write: %d of %d bytes", n, len(buf))
		}
		return nil
	})
	if !active {
		return false, nil
	}
	if err != nil {
		r.store.fail(err)
		return false, fmt.Errorf("append capture record: %w", err)
	}

	r.records.Add(context.Background(), 1, metric.WithAttributes(commandAttr(cmd)))
	return true, nil
}
