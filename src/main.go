package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crosswarped.com/linepack"
	"crosswarped.com/linepack/internal/bqsource"
	"crosswarped.com/linepack/internal/metrics"
	"crosswarped.com/linepack/pkg/primitives"
)

const (
	maxBodyBytes   = 10 << 20
	minPackTimeout = 500 * time.Millisecond
)

var validate = validator.New()

type ReflowRequest struct {
	// Width defaults to linepack.DefaultWidth when zero.
	Width     int      `json:"width" validate:"gte=0,lte=1000"`
	Measure   string   `json:"measure" validate:"omitempty,oneof=runes graphemes cells"`
	Normalize bool     `json:"normalize"`
	Text      string   `json:"text"`
	Words     []string `json:"words"`
	Table     string   `json:"table"`
	Column    string   `json:"column"`
}

type ReflowSummary struct {
	Words       int   `json:"words"`
	Lines       int   `json:"lines"`
	Degrades    int   `json:"degrades"`
	SearchNodes int64 `json:"searchNodes"`
	MemoHits    int64 `json:"memoHits"`
}

type ReflowResponse struct {
	Success   bool           `json:"success"`
	RequestID string         `json:"requestId"`
	Lines     []string       `json:"lines"`
	Summary   *ReflowSummary `json:"summary,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// tableSource is a word source that holds a connection.
type tableSource interface {
	linepack.WordSource
	Close() error
}

type server struct {
	logger    *slog.Logger
	observer  linepack.Observer
	project   string
	openTable func(ctx context.Context, p bqsource.Params) (tableSource, error)
}

func newServer(logger *slog.Logger, reg prometheus.Registerer, project string) *server {
	return &server{
		logger:   logger,
		observer: metrics.NewRecorder(reg),
		project:  project,
		openTable: func(ctx context.Context, p bqsource.Params) (tableSource, error) {
			src, err := bqsource.New(ctx, p, logger)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
	}
}

// requestError carries the HTTP status for a failed request.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, err: fmt.Errorf(format, args...)}
}

func (s *server) execute(ctx context.Context, req ReflowRequest, logger *slog.Logger) ([]string, linepack.Summary, error) {
	if err := validate.Struct(req); err != nil {
		return nil, linepack.Summary{}, badRequest("invalid request: %v", err)
	}
	width := req.Width
	if width == 0 {
		width = linepack.DefaultWidth
	}
	measure, err := primitives.ParseMeasure(req.Measure)
	if err != nil {
		return nil, linepack.Summary{}, badRequest("%v", err)
	}

	sources := []linepack.WordSource{
		linepack.SliceSource(req.Words),
		linepack.ReaderSource(strings.NewReader(req.Text)),
	}
	if req.Table != "" {
		if s.project == "" {
			return nil, linepack.Summary{}, badRequest("table requires GOOGLE_CLOUD_PROJECT to be set")
		}
		column := req.Column
		if column == "" {
			column = "text"
		}
		params := bqsource.Params{
			ProjectID: s.project,
			Table:     req.Table,
			Column:    column,
			Location:  "US",
		}
		if _, err := params.Query(); err != nil {
			return nil, linepack.Summary{}, badRequest("%v", err)
		}
		table, err := s.openTable(ctx, params)
		if err != nil {
			return nil, linepack.Summary{}, fmt.Errorf("open table: %w", err)
		}
		defer table.Close()
		sources = append(sources, table)
	}

	timeout := packTimeout(ctx)
	logger.DebugContext(ctx, "setting timeout", slog.Duration("timeout", timeout))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	packer := linepack.CreatePacker(width, linepack.PackerParams{
		Measure:   measure,
		Normalize: req.Normalize,
		Logger:    logger,
		Observer:  s.observer,
	})
	sink := &linepack.SliceSink{Lines: []string{}}
	summary, err := packer.Pack(ctx, linepack.MultiSource(sources...), sink)
	return sink.Lines, summary, err
}

// packTimeout leaves 5s of the request deadline for writing the response,
// but never less than minPackTimeout for packing.
func packTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 1 * time.Minute
	}
	return max(time.Until(deadline)-5*time.Second, minPackTimeout)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Content-Type", "application/json")
}

func (s *server) reflow(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	// CORS preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	logger := s.logger.With(slog.String("request_id", requestID))

	if r.Method != http.MethodPost {
		s.writeResponse(w, logger, http.StatusMethodNotAllowed, ReflowResponse{
			RequestID: requestID,
			Lines:     []string{},
			Error:     fmt.Sprintf("Method %s not allowed", r.Method),
		})
		return
	}

	var req ReflowRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "parsing JSON body", slog.Any("error", err))
		s.writeResponse(w, logger, http.StatusBadRequest, ReflowResponse{
			RequestID: requestID,
			Lines:     []string{},
			Error:     fmt.Sprintf("Invalid JSON: %v", err),
		})
		return
	}

	lines, summary, err := s.execute(r.Context(), req, logger)
	resp := ReflowResponse{
		Success:   err == nil,
		RequestID: requestID,
		Lines:     lines,
		Summary: &ReflowSummary{
			Words:       summary.Words,
			Lines:       summary.Lines,
			Degrades:    summary.Degrades,
			SearchNodes: summary.SearchNodes,
			MemoHits:    summary.MemoHits,
		},
	}
	if resp.Lines == nil {
		resp.Lines = []string{}
	}

	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
		logger.ErrorContext(r.Context(), "reflow failed", slog.Int("status", status), slog.Any("error", err))
	}
	s.writeResponse(w, logger, status, resp)
}

func statusFor(err error) int {
	var reqErr *requestError
	var oversized *linepack.OversizedWordError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.As(err, &oversized):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeResponse(w http.ResponseWriter, logger *slog.Logger, status int, resp ReflowResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error("marshaling response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"success": false, "error": "Internal server error"}`)
		return
	}
	w.WriteHeader(status)
	w.Write(data)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	s := newServer(logger, prometheus.DefaultRegisterer, os.Getenv("GOOGLE_CLOUD_PROJECT"))

	funcframework.RegisterHTTPFunction("/reflow", s.reflow)
	funcframework.RegisterHTTPFunction("/metrics", promhttp.Handler().ServeHTTP)

	port := "8080"
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}
	hostname := ""
	if localOnly := os.Getenv("LOCAL_ONLY"); localOnly == "true" {
		hostname = "127.0.0.1"
	}
	if err := funcframework.StartHostPort(hostname, port); err != nil {
		logger.Error("funcframework.StartHostPort", slog.Any("error", err))
		os.Exit(1)
	}
}
