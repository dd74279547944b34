package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ritzau/callflow/pkg/callgraph"
	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/pubsub"
	"github.com/ritzau/callflow/pkg/summaries"
)

var errNoUpload = errors.New("expected a .go file in field \"file\" or a .zip archive in field \"repo\"")

// handleParse analyzes an uploaded Go file or zipped repository, loads the resulting
// graph into the session and responds with the payload
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUpload)
	if err := r.ParseMultipartForm(s.opts.MaxUpload); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("failed to parse form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	s.publishLoading("analyzing upload")

	funcs, err := s.analyzeUpload(ctx, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		s.publishError(err)
		writeError(w, r, status, err)
		return
	}

	if r.FormValue("enableSummary") == "true" {
		s.summarize(ctx, funcs)
	}

	payload := funcs.Payload()
	if _, err := s.session.LoadFull(ctx, payload); err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.uploaded.Store(true)

	logging.InfoContext(ctx, "Parsed upload", "functions", len(funcs), "nodes", len(payload.Nodes),
		"links", len(payload.Links))
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) analyzeUpload(ctx context.Context, r *http.Request) (callgraph.Functions, error) {
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		return analyzeFile(file, header)
	}
	if file, header, err := r.FormFile("repo"); err == nil {
		defer file.Close()
		return analyzeArchive(ctx, file, header)
	}
	return nil, errNoUpload
}

func analyzeFile(file multipart.File, header *multipart.FileHeader) (callgraph.Functions, error) {
	if !strings.HasSuffix(header.Filename, ".go") {
		return nil, fmt.Errorf("%s is not a .go file", header.Filename)
	}
	src, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return callgraph.NewProducer().AnalyzeSource(filepath.Base(header.Filename), src)
}

func analyzeArchive(ctx context.Context, file multipart.File, header *multipart.FileHeader) (callgraph.Functions, error) {
	if !strings.HasSuffix(header.Filename, ".zip") {
		return nil, fmt.Errorf("%s is not a .zip archive", header.Filename)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "callflow-repo-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	n, err := callgraph.ExtractZip(data, tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to unzip repo: %w", err)
	}
	logging.DebugContext(ctx, "Extracted archive", "name", header.Filename, "files", n)

	return callgraph.NewProducer().AnalyzeDir(ctx, tmpDir)
}

func (s *Server) summarize(ctx context.Context, funcs callgraph.Functions) {
	if s.opts.Summarizer == nil {
		logging.WarnContext(ctx, "Summaries requested but not configured")
		return
	}
	s.publishLoading(fmt.Sprintf("summarizing %d functions", len(funcs)))
	n, err := summaries.Fill(ctx, s.opts.Summarizer, funcs, s.opts.Concurrency)
	if err != nil {
		logging.WarnContext(ctx, "Summaries interrupted", "written", n, "error", err)
		return
	}
	logging.InfoContext(ctx, "Generated summaries", "count", n)
}

func (s *Server) publishLoading(message string) {
	s.publishStatus(pubsub.GraphStatus{State: pubsub.EventLoading, Message: message})
}

func (s *Server) publishError(err error) {
	s.publishStatus(pubsub.GraphStatus{State: pubsub.EventError, Message: err.Error()})
}

func (s *Server) publishStatus(status pubsub.GraphStatus) {
	if err := s.publisher.Publish(pubsub.TopicGraphStatus, status.State, status); err != nil {
		logging.Warn("Failed to publish status", "state", status.State, "error", err)
	}
}
