package main

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosswarped.com/linepack"
	"crosswarped.com/linepack/internal/bqsource"
)

type fakeTable struct {
	linepack.SliceSource
	closed bool
}

func (f *fakeTable) Close() error {
	f.closed = true
	return nil
}

func newTestServer(t *testing.T, project string) (*server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return newServer(slog.New(slog.DiscardHandler), reg, project), reg
}

func post(t *testing.T, s *server, body string) (*httptest.ResponseRecorder, ReflowResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/reflow", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.reflow(rec, req)

	var resp ReflowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestReflow(t *testing.T) {
	s, reg := newTestServer(t, "")

	rec, resp := post(t, s, `{"width": 5, "text": "abcde ab", "words": ["cd"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"abcde", "cd ab"}, resp.Lines)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, rec.Header().Get("X-Request-Id"))
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 3, resp.Summary.Words)
	assert.Equal(t, 2, resp.Summary.Lines)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	expected := `
# HELP linepack_lines_emitted_total Lines packed
# TYPE linepack_lines_emitted_total counter
linepack_lines_emitted_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "linepack_lines_emitted_total"))
}

func TestReflow_DefaultWidth(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec, resp := post(t, s, `{"text": "aa aaaa bbbb"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"bbbb aaaa aa"}, resp.Lines)
	assert.Equal(t, 68, resp.Summary.Degrades)
}

func TestReflow_Empty(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec, resp := post(t, s, `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{}, resp.Lines)
}

func TestReflow_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantErr    string
	}{
		{"invalid json", `{"width": `, http.StatusBadRequest, "Invalid JSON"},
		{"negative width", `{"width": -1, "text": "a"}`, http.StatusBadRequest, "Width"},
		{"width too large", `{"width": 1001, "text": "a"}`, http.StatusBadRequest, "Width"},
		{"unknown measure", `{"measure": "bytes", "text": "a"}`, http.StatusBadRequest, "Measure"},
		{"oversized word", `{"width": 3, "text": "ok toolong"}`, http.StatusUnprocessableEntity, "toolong"},
		{"table without project", `{"table": "corpus.lines"}`, http.StatusBadRequest, "GOOGLE_CLOUD_PROJECT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, "")
			rec, resp := post(t, s, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, tt.wantErr)
			assert.NotNil(t, resp.Lines)
		})
	}
}

func TestReflow_Table(t *testing.T) {
	s, _ := newTestServer(t, "my-project")
	table := &fakeTable{SliceSource: linepack.SliceSource{"ab", "cd"}}

	var got bqsource.Params
	s.openTable = func(ctx context.Context, p bqsource.Params) (tableSource, error) {
		got = p
		return table, nil
	}

	rec, resp := post(t, s, `{"width": 5, "words": ["abcde"], "table": "corpus.lines"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"abcde", "cd ab"}, resp.Lines)
	assert.Equal(t, bqsource.Params{ProjectID: "my-project", Table: "corpus.lines", Column: "text", Location: "US"}, got)
	assert.True(t, table.closed)
}

func TestReflow_TableErrors(t *testing.T) {
	t.Run("bad table name", func(t *testing.T) {
		s, _ := newTestServer(t, "my-project")
		rec, resp := post(t, s, `{"table": "lines; DROP"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, resp.Error, "invalid table")
	})

	t.Run("open fails", func(t *testing.T) {
		s, _ := newTestServer(t, "my-project")
		s.openTable = func(context.Context, bqsource.Params) (tableSource, error) {
			return nil, errors.New("no credentials")
		}
		rec, resp := post(t, s, `{"table": "corpus.lines"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, resp.Error, "no credentials")
	})

	t.Run("read fails", func(t *testing.T) {
		s, _ := newTestServer(t, "my-project")
		boom := errors.New("quota exceeded")
		s.openTable = func(context.Context, bqsource.Params) (tableSource, error) {
			return &erroringTable{err: boom}, nil
		}
		rec, resp := post(t, s, `{"table": "corpus.lines"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, resp.Error, "quota exceeded")
	})
}

type erroringTable struct {
	err error
}

func (e *erroringTable) Words(context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", e.err)
	}
}

func (e *erroringTable) Close() error { return nil }

func TestReflow_Methods(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	s.reflow(rec, httptest.NewRequest(http.MethodOptions, "/reflow", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	s.reflow(rec, httptest.NewRequest(http.MethodGet, "/reflow", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "Method GET not allowed")
}

func TestPackTimeout(t *testing.T) {
	assert.Equal(t, time.Minute, packTimeout(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), time.Hour)
	defer cancel()
	got := packTimeout(ctx)
	assert.Greater(t, got, 59*time.Minute)
	assert.LessOrEqual(t, got, time.Hour-5*time.Second)

	ctx, cancel = context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	assert.Equal(t, minPackTimeout, packTimeout(ctx))
}

func TestReflow_ShortDeadline(t *testing.T) {
	s, _ := newTestServer(t, "")

	ctx, cancel := context.WithTimeout(t.Context(), 3*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/reflow", strings.NewReader(`{"width": 5, "text": "abcde ab cd"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.reflow(rec, req)

	var resp ReflowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"abcde", "cd ab"}, resp.Lines)
}
