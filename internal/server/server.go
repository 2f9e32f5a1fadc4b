package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-textbpe/internal/bpe"
	"github.com/example/go-textbpe/internal/config"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Tokenizer encodes word lists and decodes id sequences.
type Tokenizer interface {
	EncodeManyParallel(ctx context.Context, docs [][]string, workers int) ([]bpe.Encoded, error)
	Decode(ids []int, joiner string) string
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	encodeWorkers  int
	requestTimeout time.Duration
	joiner         string
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   64 * 1024,
		workers:        2,
		encodeWorkers:  4,
		requestTimeout: 30 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes caps the total bytes of words or texts in one POST /encode.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of requests served concurrently.
// Zero disables the limit.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithEncodeWorkers sets how many goroutines encode the documents of one request.
func WithEncodeWorkers(n int) Option {
	return func(o *options) { o.encodeWorkers = n }
}

// WithRequestTimeout sets the per-request encoding deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithJoiner sets the decode joiner used when a request does not supply one.
func WithJoiner(s string) Option {
	return func(o *options) { o.joiner = s }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	tok  Tokenizer
	seg  bpe.Segmenter
	opts options
	sem  chan struct{}
	log  *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, POST /encode and POST /decode.
// seg segments the "texts" form of /encode requests.
func NewHandler(tok Tokenizer, seg bpe.Segmenter, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		tok:  tok,
		seg:  seg,
		opts: opts,
		log:  opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/encode", h.handleEncode)
	mux.HandleFunc("/decode", h.handleDecode)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

// encodeRequest carries exactly one of its three forms.
type encodeRequest struct {
	Words []string   `json:"words"`
	Docs  [][]string `json:"docs"`
	Texts []string   `json:"texts"`
}

type encodeResult struct {
	bpe.Encoded
	Offsets []int `json:"offsets"`
}

type encodeResponse struct {
	Results []encodeResult `json:"results"`
}

// docs converts the request into pre-tokenized documents and reports the
// total input size in bytes. Texts over limit are not segmented.
func (r encodeRequest) docs(seg bpe.Segmenter, limit int) ([][]string, int, error) {
	forms := 0
	for _, set := range []bool{r.Words != nil, r.Docs != nil, r.Texts != nil} {
		if set {
			forms++
		}
	}
	if forms != 1 {
		return nil, 0, errors.New("exactly one of words, docs or texts is required")
	}

	size := 0
	switch {
	case r.Words != nil:
		for _, w := range r.Words {
			size += len(w)
		}
		return [][]string{r.Words}, size, nil
	case r.Docs != nil:
		for _, d := range r.Docs {
			for _, w := range d {
				size += len(w)
			}
		}
		return r.Docs, size, nil
	default:
		for _, t := range r.Texts {
			size += len(t)
		}
		if size > limit {
			return nil, size, nil
		}
		return bpe.SegmentTexts(r.Texts, seg), size, nil
	}
}

// maxBodyBytes bounds a POST /encode body. JSON quoting can expand a text up
// to six bytes per input byte ("\u00XX"), plus a fixed allowance for the
// envelope.
func maxBodyBytes(maxTextBytes int) int64 {
	return 6*int64(maxTextBytes) + 4096
}

func (h *handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes(h.opts.maxTextBytes))

	var req encodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Texts != nil && h.seg == nil {
		writeError(w, http.StatusBadRequest, "texts are not supported without a segmenter")
		return
	}

	docs, size, err := req.docs(h.seg, h.opts.maxTextBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if size > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("input exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return
	}

	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	encoded, err := h.tok.EncodeManyParallel(ctx, docs, h.opts.encodeWorkers)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.log.WarnContext(r.Context(), "encode timed out",
				slog.Int("docs", len(docs)),
				slog.Int("text_len", size),
				slog.Int64("duration_ms", durationMS),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusGatewayTimeout, "encode timed out")
			return
		}
		h.log.ErrorContext(r.Context(), "encode failed",
			slog.Int("docs", len(docs)),
			slog.Int("text_len", size),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := encodeResponse{Results: make([]encodeResult, len(encoded))}
	tokens := 0
	for i, enc := range encoded {
		resp.Results[i] = encodeResult{Encoded: enc, Offsets: enc.Offsets()}
		tokens += len(enc.IDs)
	}

	h.log.InfoContext(r.Context(), "encode complete",
		slog.Int("docs", len(docs)),
		slog.Int("text_len", size),
		slog.Int("tokens", tokens),
		slog.Int64("duration_ms", durationMS),
	)

	writeJSON(w, http.StatusOK, resp)
}

type decodeRequest struct {
	IDs    []int   `json:"ids"`
	Joiner *string `json:"joiner"`
}

func (h *handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req decodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	joiner := h.opts.joiner
	if req.Joiner != nil {
		joiner = *req.Joiner
	}

	release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	text := h.tok.Decode(req.IDs, joiner)

	h.log.InfoContext(r.Context(), "decode complete",
		slog.Int("tokens", len(req.IDs)),
		slog.Int("text_len", len(text)),
	)

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// acquire takes a worker slot, honouring request cancellation while waiting.
func (h *handler) acquire(w http.ResponseWriter, r *http.Request) (func(), bool) {
	if h.sem == nil {
		return func() {}, true
	}
	select {
	case h.sem <- struct{}{}:
		return func() { <-h.sem }, true
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
		return nil, false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	tok             Tokenizer
	seg             bpe.Segmenter
	shutdownTimeout time.Duration
}

func New(cfg config.Config, tok Tokenizer, seg bpe.Segmenter) *Server {
	return &Server{
		cfg:             cfg,
		tok:             tok,
		seg:             seg,
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	if s.tok == nil {
		return errors.New("server: no tokenizer configured")
	}

	h := NewHandler(s.tok, s.seg,
		WithWorkers(s.cfg.Server.Workers),
		WithEncodeWorkers(s.cfg.Encoder.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithJoiner(s.cfg.Encoder.Joiner),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	slog.Info("listening", slog.String("addr", s.cfg.Server.ListenAddr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
