// Package server exposes a shared sketch over HTTP.
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/Borislavv/cmsketch/pkg/admission"
	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/Borislavv/cmsketch/pkg/prometheus/metrics"
	"github.com/Borislavv/cmsketch/pkg/prometheus/metrics/middleware"
	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/fasthttp/router"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
	"github.com/zeebo/xxh3"
)

const shutdownTimeout = 5 * time.Second

var (
	contentTypeJson   = "application/json"
	contentTypeBinary = "application/octet-stream"
	MissingKeyError   = errors.New("query parameter \"key\" is required")

	MissingAdmitKeysError  = errors.New("query parameters \"candidate\" and \"victim\" are required")
	AdmissionDisabledError = errors.New("admission is disabled")
)

// KeyParser turns a query parameter into a sketch key.
type KeyParser[K any] func(raw string) (K, error)

// ParseString accepts any text as a key.
func ParseString(raw string) (string, error) {
	return raw, nil
}

// ParseInt accepts base-10 signed 64-bit integers.
func ParseInt(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// Server serves add, estimate, merge and snapshot requests against one Synced sketch.
type Server[K any] struct {
	cfg    *config.Sketch
	sketch *sketch.Synced[K]
	codec  sketch.Codec[K]
	parse  KeyParser[K]
	meter  metrics.Meter
	srv    *fasthttp.Server

	// admission is optional; GET /admit answers 404 without it
	admission *admission.TinyLFU
}

func New[K any](
	cfg *config.Sketch,
	sk *sketch.Synced[K],
	codec sketch.Codec[K],
	parse KeyParser[K],
	meter metrics.Meter,
) *Server[K] {
	s := &Server[K]{
		cfg:    cfg,
		sketch: sk,
		codec:  codec,
		parse:  parse,
		meter:  meter,
	}
	s.srv = &fasthttp.Server{
		Name:               "cmsketch",
		Handler:            s.Handler(),
		ReadTimeout:        cfg.Sketch.Server.ReadTimeout,
		WriteTimeout:       cfg.Sketch.Server.WriteTimeout,
		MaxRequestBodySize: cfg.Sketch.Server.MaxBodySize,
	}
	return s
}

// WithAdmission makes every added key an access of lfu and enables GET /admit.
func (s *Server[K]) WithAdmission(lfu *admission.TinyLFU) *Server[K] {
	s.admission = lfu
	return s
}

// Handler returns the routed handler wrapped with metrics.
func (s *Server[K]) Handler() fasthttp.RequestHandler {
	r := router.New()
	r.POST("/add", s.handleAdd)
	r.GET("/estimate", s.handleEstimate)
	r.GET("/stats", s.handleStats)
	r.GET("/snapshot", s.handleSnapshot)
	r.POST("/merge", s.handleMerge)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/admit", s.handleAdmit)
	return middleware.NewPrometheusMetrics(s.meter).Middleware(r.Handler)
}

// ListenAndServe serves on the configured address until ctx is done.
func (s *Server[K]) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp4", s.cfg.Sketch.Server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server[K]) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("[server] listening on %s", ln.Addr())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		sCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.ShutdownWithContext(sCtx); err != nil {
			return err
		}
		log.Info().Msg("[server] has been stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// handleAdd counts ?key= by ?count= (default 1), or every non-empty body line once when no key is given.
func (s *Server[K]) handleAdd(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	if !args.Has("key") {
		s.addLines(ctx)
		return
	}

	key, err := s.parse(string(args.Peek("key")))
	if err != nil {
		s.fail(ctx, "add", fasthttp.StatusBadRequest, err)
		return
	}
	count := int64(1)
	if raw := args.Peek("count"); len(raw) > 0 {
		if count, err = strconv.ParseInt(string(raw), 10, 64); err != nil {
			s.fail(ctx, "add", fasthttp.StatusBadRequest, err)
			return
		}
	}
	if err = s.sketch.AddCount(key, count); err != nil {
		s.fail(ctx, "add", statusOf(err), err)
		return
	}
	s.record(key)
	s.meter.IncAdded(uint64(count))
	s.meter.SetTotalWeight(s.sketch.TotalWeight())
	s.writeJson(ctx, map[string]any{"added": count})
}

func (s *Server[K]) addLines(ctx *fasthttp.RequestCtx) {
	var keys []K
	sc := bufio.NewScanner(bytes.NewReader(ctx.PostBody()))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		key, err := s.parse(line)
		if err != nil {
			s.fail(ctx, "add", fasthttp.StatusBadRequest, err)
			return
		}
		keys = append(keys, key)
	}
	if err := sc.Err(); err != nil {
		s.fail(ctx, "add", fasthttp.StatusBadRequest, err)
		return
	}
	if len(keys) == 0 {
		s.fail(ctx, "add", fasthttp.StatusBadRequest, MissingKeyError)
		return
	}
	for _, key := range keys {
		s.sketch.Add(key)
		s.record(key)
	}
	s.meter.IncAdded(uint64(len(keys)))
	s.meter.SetTotalWeight(s.sketch.TotalWeight())
	s.writeJson(ctx, map[string]any{"added": len(keys)})
}

func (s *Server[K]) handleEstimate(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	if !args.Has("key") {
		s.fail(ctx, "estimate", fasthttp.StatusBadRequest, MissingKeyError)
		return
	}
	raw := string(args.Peek("key"))
	key, err := s.parse(raw)
	if err != nil {
		s.fail(ctx, "estimate", fasthttp.StatusBadRequest, err)
		return
	}
	s.meter.IncEstimates()
	s.writeJson(ctx, map[string]any{"key": raw, "estimate": s.sketch.Estimate(key)})
}

func (s *Server[K]) handleStats(ctx *fasthttp.RequestCtx) {
	s.writeJson(ctx, s.sketch.Stats())
}

func (s *Server[K]) handleSnapshot(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType(contentTypeBinary)
	ctx.SetBody(s.sketch.ToBytes())
}

// handleMerge folds a snapshot posted in the body into the served sketch.
func (s *Server[K]) handleMerge(ctx *fasthttp.RequestCtx) {
	other, err := sketch.FromBytes(s.codec, ctx.PostBody())
	if err != nil {
		s.fail(ctx, "merge", statusOf(err), err)
		return
	}
	if err = s.sketch.MergeSketch(other); err != nil {
		s.fail(ctx, "merge", statusOf(err), err)
		return
	}
	s.meter.IncMerges()
	total := s.sketch.TotalWeight()
	s.meter.SetTotalWeight(total)
	s.writeJson(ctx, map[string]any{"merged": other.TotalWeight(), "totalWeight": total})
}

// handleAdmit reports whether ?candidate= is at least as popular as ?victim= over the admission window.
// Accesses still buffered are counted first.
func (s *Server[K]) handleAdmit(ctx *fasthttp.RequestCtx) {
	if s.admission == nil {
		s.fail(ctx, "admit", fasthttp.StatusNotFound, AdmissionDisabledError)
		return
	}
	args := ctx.QueryArgs()
	if !args.Has("candidate") || !args.Has("victim") {
		s.fail(ctx, "admit", fasthttp.StatusBadRequest, MissingAdmitKeysError)
		return
	}
	candidate, err := s.parse(string(args.Peek("candidate")))
	if err != nil {
		s.fail(ctx, "admit", fasthttp.StatusBadRequest, err)
		return
	}
	victim, err := s.parse(string(args.Peek("victim")))
	if err != nil {
		s.fail(ctx, "admit", fasthttp.StatusBadRequest, err)
		return
	}

	s.admission.Flush()
	candidateFreq, victimFreq := s.admission.Compare(s.fingerprint(candidate), s.fingerprint(victim))
	admit := candidateFreq >= victimFreq
	s.meter.IncAdmissions(admit)
	s.writeJson(ctx, map[string]any{
		"admit":              admit,
		"candidateFrequency": candidateFreq,
		"victimFrequency":    victimFreq,
	})
}

func (s *Server[K]) record(key K) {
	if s.admission != nil {
		s.admission.Record(s.fingerprint(key))
	}
}

func (s *Server[K]) fingerprint(key K) uint64 {
	var scratch [64]byte
	return xxh3.Hash(s.codec.Encode(scratch[:0], key))
}

func (s *Server[K]) handleMetrics(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("text/plain; version=0.0.4")
	s.meter.WritePrometheus(ctx)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, sketch.IncompatibleSketchError):
		return fasthttp.StatusConflict
	case errors.Is(err, sketch.InvalidArgumentError), errors.Is(err, sketch.FormatError):
		return fasthttp.StatusBadRequest
	default:
		return fasthttp.StatusInternalServerError
	}
}

func (s *Server[K]) fail(ctx *fasthttp.RequestCtx, op string, status int, err error) {
	s.meter.IncErrors(op)
	log.Debug().Err(err).Str("op", op).Msg("[server] request rejected")
	ctx.SetStatusCode(status)
	s.writeJson(ctx, map[string]any{"error": map[string]any{"message": err.Error()}})
}

func (s *Server[K]) writeJson(ctx *fasthttp.RequestCtx, v any) {
	ctx.SetContentType(contentTypeJson)
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		log.Error().Err(err).Msg("[server] failed to encode response")
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}
