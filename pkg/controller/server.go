package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/Seann-Moser/servod/pkg/bus"
	"github.com/Seann-Moser/servod/pkg/pca9685"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Channel command types accepted by PUT /channel/{channel}.
const (
	CommandAngle   = "angle"
	CommandPulse   = "pulse_width"
	CommandPercent = "percent"
	CommandCount   = "count"
	CommandFullOn  = "full_on"
	CommandFullOff = "full_off"
)

// ChannelCommand is the PUT /channel/{channel} request body. Value is
// required for angle, pulse_width, percent, and count, and must be absent
// for full_on and full_off.
type ChannelCommand struct {
	Command string   `json:"command"`
	Value   *float64 `json:"value,omitempty"`
}

// StatusResponse is the GET /status body.
type StatusResponse struct {
	Status   string         `json:"status"`
	Software SoftwareStatus `json:"software"`
	Chip     ChipStatus     `json:"chip"`
}

// SoftwareStatus reports the running service version.
type SoftwareStatus struct {
	Version string `json:"version"`
}

// ChipStatus reports the chip lifecycle state and output frequency.
type ChipStatus struct {
	State       pca9685.State `json:"state"`
	FrequencyHz float64       `json:"frequency_hz"`
}

// OutputRequest is the PUT /output body.
type OutputRequest struct {
	Enabled bool `json:"enabled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server exposes the controller over HTTP.
type Server struct {
	ctl    *pca9685.Controller
	listen string
	logger golog.Logger
}

// NewServer wires the HTTP API around a controller.
func NewServer(ctl *pca9685.Controller, listen string, logger golog.Logger) *Server {
	return &Server{ctl: ctl, listen: listen, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /channel/{channel}", s.handleGetChannel)
	mux.HandleFunc("POST /channel", s.handleConfigureChannel)
	mux.HandleFunc("PUT /channel/{channel}", s.handleCommandChannel)
	mux.HandleFunc("DELETE /channel/{channel}", s.handleDeleteChannel)
	mux.HandleFunc("PUT /output", s.handleOutput)
	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Infow("server running", "listen", s.listen)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := s.ctl.State()
	status := "healthy"
	if state != pca9685.StateAwake {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:   status,
		Software: SoftwareStatus{Version: Version},
		Chip:     ChipStatus{State: state, FrequencyHz: s.ctl.Frequency()},
	})
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channelParam(w, r)
	if !ok {
		return
	}
	st, err := s.ctl.Channel(ch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleConfigureChannel(w http.ResponseWriter, r *http.Request) {
	var cfg pca9685.ChannelConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.ctl.Configure(cfg); err != nil {
		s.writeError(w, err)
		return
	}
	st, err := s.ctl.Channel(cfg.Channel)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCommandChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channelParam(w, r)
	if !ok {
		return
	}
	var cmd ChannelCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	needsValue := cmd.Command == CommandAngle || cmd.Command == CommandPulse ||
		cmd.Command == CommandPercent || cmd.Command == CommandCount
	if needsValue && cmd.Value == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "command body must contain 'value' for angle | pulse_width | percent | count",
		})
		return
	}
	if !needsValue && cmd.Value != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "command body may only contain 'value' for angle | pulse_width | percent | count",
		})
		return
	}

	var st pca9685.ChannelState
	var err error
	switch cmd.Command {
	case CommandAngle:
		st, err = s.ctl.ApplyAngle(r.Context(), ch, *cmd.Value)
	case CommandPulse:
		st, err = s.ctl.ApplyPulseMs(r.Context(), ch, *cmd.Value)
	case CommandPercent:
		st, err = s.ctl.ApplyPercent(r.Context(), ch, *cmd.Value)
	case CommandCount:
		st, err = s.ctl.ApplyCount(r.Context(), ch, int(*cmd.Value))
	case CommandFullOn:
		st, err = s.ctl.FullOn(r.Context(), ch)
	case CommandFullOff:
		st, err = s.ctl.FullOff(r.Context(), ch)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "unknown command " + strconv.Quote(cmd.Command),
		})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.channelParam(w, r)
	if !ok {
		return
	}
	// Assert the channel exists so deletes of unknown channels 404.
	if _, err := s.ctl.Channel(ch); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ctl.Deconfigure(ch); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	var req OutputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.ctl.SetOutputEnabled(req.Enabled); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) channelParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	ch, err := strconv.Atoi(r.PathValue("channel"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "channel must be an integer"})
		return 0, false
	}
	return ch, true
}

// writeError maps core errors onto HTTP statuses: hardware faults are
// server errors, everything else is the caller's fault.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, pca9685.ErrChannelNotConfigured):
		code = http.StatusNotFound
	case errors.Is(err, bus.ErrNotPresent), errors.Is(err, bus.ErrTimeout):
		code = http.StatusInternalServerError
	case errors.Is(err, pca9685.ErrInvalidChannel),
		errors.Is(err, pca9685.ErrInvalidPulseRange),
		errors.Is(err, pca9685.ErrInvalidAngleRange),
		errors.Is(err, pca9685.ErrInvalidFrequency),
		errors.Is(err, pca9685.ErrValueOutOfRange),
		errors.Is(err, pca9685.ErrNotInitialized):
	default:
		// Unclassified errors come from the bus I/O path.
		code = http.StatusInternalServerError
	}
	if code == http.StatusInternalServerError {
		s.logger.Errorw("request failed", "error", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
