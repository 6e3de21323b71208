// Package server exposes the split pipeline over HTTP.
//
//	POST /split    multipart "file" upload, responds with the zip archive
//	POST /summary  same input, responds with the JSON summary only
//	GET  /healthz  liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/eunmann/agesplit/internal/config"
	"github.com/eunmann/agesplit/internal/logctx"
	"github.com/eunmann/agesplit/pkg/delimiter"
	"github.com/eunmann/agesplit/pkg/membudget"
	"github.com/eunmann/agesplit/pkg/pipeline"
	"github.com/eunmann/agesplit/pkg/source"
	"github.com/eunmann/agesplit/pkg/table"
)

const (
	HeaderTotalRows = "X-Agesplit-Total-Rows"
	HeaderFiles     = "X-Agesplit-Files"

	// multipartOverhead is allowed on top of the input budget for form
	// fields and part headers.
	multipartOverhead = 1 << 20
	shutdownTimeout   = 5 * time.Second
)

// Server handles split requests. Each request gets its own copy of the
// base configuration; nothing is shared between requests.
type Server struct {
	base   config.Config
	budget *membudget.Budget
	now    func() time.Time
	srv    *http.Server
}

// New creates a server whose requests start from base and whose uploads
// are limited by budget.
func New(base config.Config, budget *membudget.Budget) *Server {
	return &Server{base: base, budget: budget, now: time.Now}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("POST /split", s.split)
	mux.HandleFunc("POST /summary", s.summary)
	return mux
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	log := logctx.FromContext(ctx)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("budget", s.budget.String()).Msg("server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) split(w http.ResponseWriter, r *http.Request) {
	res, ok := s.run(w, r)
	if !ok {
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.ArchiveName))
	h.Set("Content-Length", strconv.Itoa(len(res.Archive)))
	h.Set(HeaderTotalRows, strconv.Itoa(res.Summary.TotalRows))
	h.Set(HeaderFiles, strconv.Itoa(len(res.Summary.Files)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Archive); err != nil {
		log := logctx.FromContext(r.Context())
		log.Warn().Err(err).Msg("write response")
	}
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	res, ok := s.run(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderTotalRows, strconv.Itoa(res.Summary.TotalRows))
	w.Header().Set(HeaderFiles, strconv.Itoa(len(res.Summary.Files)))
	if err := json.NewEncoder(w).Encode(res.Summary); err != nil {
		log := logctx.FromContext(r.Context())
		log.Warn().Err(err).Msg("encode summary")
	}
}

// run parses the upload and executes the pipeline, writing an error
// response itself when it fails.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	ctx, runID := logctx.WithRunID(r.Context())
	ctx = logctx.WithStr(ctx, "path", r.URL.Path)
	w.Header().Set("X-Agesplit-Run-Id", runID)

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.budget.Total())+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.fail(ctx, w, http.StatusRequestEntityTooLarge, err)
			return nil, false
		}
		s.fail(ctx, w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return nil, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, fh, err := r.FormFile("file")
	if err != nil {
		s.fail(ctx, w, http.StatusBadRequest, fmt.Errorf("form field \"file\": %w", err))
		return nil, false
	}
	defer file.Close()
	ctx = logctx.WithInt(ctx, "upload_bytes", int(fh.Size))
	log := logctx.FromContext(ctx)

	cfg, err := s.requestConfig(r)
	if err != nil {
		s.fail(ctx, w, http.StatusBadRequest, err)
		return nil, false
	}
	pc, err := cfg.Pipeline(s.now(), r.MultipartForm.Value["sub"])
	if err != nil {
		s.fail(ctx, w, statusFor(err), err)
		return nil, false
	}

	in, err := source.Decode(fh.Filename, file, s.budget)
	if err != nil {
		s.fail(ctx, w, statusFor(err), err)
		return nil, false
	}

	res, err := pipeline.Run(ctx, in, pc)
	if err != nil {
		s.fail(ctx, w, statusFor(err), err)
		return nil, false
	}
	log.Info().Str("archive", res.ArchiveName).Int("total_rows", res.Summary.TotalRows).Msg("request complete")
	return res, true
}

// requestConfig applies the optional form fields to a copy of the base
// configuration.
func (s *Server) requestConfig(r *http.Request) (config.Config, error) {
	cfg := s.base
	form := r.MultipartForm.Value
	get := func(key string) (string, bool) {
		v := form[key]
		if len(v) == 0 || v[0] == "" {
			return "", false
		}
		return v[0], true
	}

	if v, ok := get("date_column"); ok {
		cfg.DateColumn = v
	}
	if v, ok := get("delimiter"); ok {
		cfg.Delimiter = v
	}
	if v, ok := get("output_delimiter"); ok {
		cfg.OutputDelimiter = v
	}
	if v, ok := get("prefix"); ok {
		cfg.Prefix = v
	}
	if v, ok := get("reference"); ok {
		cfg.Reference = v
	}
	if v, ok := get("chunk_size"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: chunk_size %q is not an integer", pipeline.ErrConfig, v)
		}
		cfg.ChunkSize = n
	}
	if v, ok := get("keep_age"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: keep_age %q is not a boolean", pipeline.ErrConfig, v)
		}
		cfg.KeepAge = b
	}
	// Plan files are a server-side setting.
	return cfg, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, source.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, delimiter.ErrDetectionFailure),
		errors.Is(err, table.ErrSchema),
		errors.Is(err, table.ErrNoHeader),
		errors.Is(err, table.ErrMalformedRow),
		errors.Is(err, table.ErrUnsupportedSchema),
		errors.Is(err, pipeline.ErrConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(ctx context.Context, w http.ResponseWriter, status int, err error) {
	log := logctx.FromContext(ctx)
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Int("status", status).Msg("request failed")
	http.Error(w, err.Error(), status)
}
