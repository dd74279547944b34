package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ritzau/callflow/pkg/interact"
	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/model"
	"github.com/ritzau/callflow/pkg/pubsub"
)

// maxJSONBody bounds JSON request bodies
const maxJSONBody = 32 << 20

// FocusRequest selects the filter root
type FocusRequest struct {
	ID string `json:"id"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Graph())
}

func (s *Server) handleLoadGraph(w http.ResponseWriter, r *http.Request) {
	var payload model.Payload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if payload.Nodes == nil {
		writeError(w, r, http.StatusBadRequest, errors.New("payload has no nodes"))
		return
	}

	status, err := s.session.LoadFull(r.Context(), &payload)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.uploaded.Store(true)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSetFocus(w http.ResponseWriter, r *http.Request) {
	var req FocusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	status, err := s.session.LoadFiltered(r.Context(), req.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleClearFocus(w http.ResponseWriter, r *http.Request) {
	status, err := s.session.LoadFiltered(r.Context(), "")
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev interact.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if err := s.session.Dispatch(r.Context(), ev); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, interact.ErrUnknownEvent) {
			status = http.StatusBadRequest
		}
		writeError(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Frame())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Frame())
}

func (s *Server) handleFrameSVG(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.session.Frame().WriteSVG(&buf); err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if _, err := io.Copy(w, &buf); err != nil {
		logging.WarnContext(r.Context(), "Failed to write svg", "error", err)
	}
}

// StatusResponse is the graph status plus the number of connected viewers
type StatusResponse struct {
	pubsub.GraphStatus
	Viewers int `json:"viewers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		GraphStatus: s.session.Status(),
		Viewers:     s.publisher.Subscribers(pubsub.TopicLayout),
	})
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Summaries())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "callflow server is running")
}
