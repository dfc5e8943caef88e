// Package remote exposes the rover over HTTP: a WebSocket control channel,
// a state feed, capture session endpoints and the dataset download.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/gwillem/rover/pkg/arbiter"
	"github.com/gwillem/rover/pkg/capture"
)

const (
	// DefaultChunkSize is the buffer handed to the exporter per write.
	DefaultChunkSize = 1024
	// DefaultMaxModelSize bounds an uploaded model file.
	DefaultMaxModelSize = 1 << 20

	statePeriod = 100 * time.Millisecond
	writeWait   = 2 * time.Second
)

// StateSource reports the arbiter's latest state.
type StateSource interface {
	Snapshot() arbiter.State
}

// ModelLoader installs a model file.
type ModelLoader interface {
	LoadFile(fs afero.Fs, path string) error
}

// Config holds the server's collaborators.
type Config struct {
	Control      Controller
	State        StateSource
	Recorder     *capture.Recorder
	Exporter     *capture.Exporter
	Model        ModelLoader // optional
	Fs           afero.Fs    // where ModelPath lives
	ModelPath    string
	ChunkSize    int
	MaxModelSize int64
	Logger       zerolog.Logger
}

// Server serves the remote control API.
type Server struct {
	cfg      Config
	logger   zerolog.Logger
	upgrader ws.Upgrader
	mux      *http.ServeMux
}

// New creates a server.
func New(cfg Config) *Server {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxModelSize <= 0 {
		cfg.MaxModelSize = DefaultMaxModelSize
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}

	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger.With().Str("component", "remote").Logger(),
		upgrader: ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /control.ws", s.handleControlWs)
	s.mux.HandleFunc("GET /sensors.ws", s.handleSensorsWs)
	s.mux.HandleFunc("GET /state", s.handleState)
	s.mux.HandleFunc("POST /capture/enable", s.handleCaptureEnable)
	s.mux.HandleFunc("POST /capture/disable", s.handleCaptureDisable)
	s.mux.HandleFunc("POST /capture/clear", s.handleCaptureClear)
	s.mux.HandleFunc("GET /capture.csv", s.handleCaptureCsv)
	s.mux.HandleFunc("PUT /model.json", s.handleModelUpload)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleControlWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("control upgrade failed")
		return
	}
	defer conn.Close()

	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("control connected")
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("control disconnected")
			return
		}
		if kind != ws.TextMessage {
			continue
		}
		d, ok := ParseDirective(string(msg))
		if !ok {
			s.logger.Debug().Str("text", string(msg)).Msg("ignoring control message")
			continue
		}
		d.Apply(s.cfg.Control)
	}
}

func (s *Server) handleSensorsWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("sensors upgrade failed")
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			data, err := json.Marshal(s.cfg.State.Snapshot())
			if err != nil {
				s.logger.Error().Err(err).Msg("encode state")
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.cfg.State.Snapshot()); err != nil {
		s.logger.Warn().Err(err).Msg("write state")
	}
}

func (s *Server) handleCaptureEnable(w http.ResponseWriter, _ *http.Request) {
	s.sessionResult(w, "enable capture", s.cfg.Recorder.Enable())
}

func (s *Server) handleCaptureDisable(w http.ResponseWriter, _ *http.Request) {
	s.sessionResult(w, "disable capture", s.cfg.Recorder.Disable())
}

func (s *Server) handleCaptureClear(w http.ResponseWriter, _ *http.Request) {
	s.sessionResult(w, "clear capture", s.cfg.Recorder.Clear())
}

func (s *Server) sessionResult(w http.ResponseWriter, op string, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, capture.ErrSessionBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error().Err(err).Msg(op)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleCaptureCsv streams the dataset in ChunkSize pieces. Row boundaries
// do not line up with chunk boundaries.
func (s *Server) handleCaptureCsv(w http.ResponseWriter, r *http.Request) {
	exp := s.cfg.Exporter
	if err := exp.BeginRead(); err != nil {
		s.sessionResult(w, "begin export", err)
		return
	}
	defer func() {
		if err := exp.EndRead(); err != nil {
			s.logger.Warn().Err(err).Msg("end export")
		}
	}()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="capture.csv"`)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, s.cfg.ChunkSize)
	total := 0
	for {
		if r.Context().Err() != nil {
			return
		}
		n, err := exp.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				s.logger.Debug().Err(werr).Msg("export client gone")
				return
			}
			total += n
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Headers are already out; the truncated body is all we can signal.
			s.logger.Error().Err(err).Int("bytes", total).Msg("export failed")
			return
		}
	}
	s.logger.Info().Int("bytes", total).Msg("dataset exported")
}

func (s *Server) handleModelUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Model == nil || s.cfg.ModelPath == "" {
		http.Error(w, "model loading disabled", http.StatusNotImplemented)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxModelSize))
	if err != nil {
		http.Error(w, fmt.Sprintf("model must be %d bytes or less", s.cfg.MaxModelSize), http.StatusRequestEntityTooLarge)
		return
	}
	if err := afero.WriteFile(s.cfg.Fs, s.cfg.ModelPath, data, 0644); err != nil {
		s.logger.Error().Err(err).Msg("store model")
		http.Error(w, "error writing model file", http.StatusInternalServerError)
		return
	}
	if err := s.cfg.Model.LoadFile(s.cfg.Fs, s.cfg.ModelPath); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
