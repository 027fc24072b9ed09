// Package sketchd runs a shared sketch as a long-lived service: HTTP API, periodic dumps and stats logging.
package sketchd

import (
	"context"
	"errors"
	"net"

	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/Borislavv/cmsketch/pkg/prometheus/metrics"
	"github.com/Borislavv/cmsketch/pkg/server"
	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/Borislavv/cmsketch/pkg/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Service[K any] struct {
	ctx    context.Context
	cfg    *config.Sketch
	codec  sketch.Codec[K]
	parse  server.KeyParser[K]
	sketch *sketch.Synced[K]
	meter  *metrics.Metrics
	dumper *storage.Dump[K]
	server *server.Server[K]
}

func New[K any](cfg *config.Sketch, codec sketch.Codec[K], parse server.KeyParser[K]) *Service[K] {
	return &Service[K]{cfg: cfg, codec: codec, parse: parse}
}

// Run listens on the configured address until ctx is done. The final dump is written before Run returns.
func (s *Service[K]) Run(ctx context.Context) error {
	return s.run(ctx, func(ctx context.Context) error {
		return s.server.ListenAndServe(ctx)
	})
}

// Serve is Run on a caller-provided listener.
func (s *Service[K]) Serve(ctx context.Context, ln net.Listener) error {
	return s.run(ctx, func(ctx context.Context) error {
		return s.server.Serve(ctx, ln)
	})
}

func (s *Service[K]) run(ctx context.Context, serve func(ctx context.Context) error) error {
	log.Info().Msg("[sketchd] starting")

	s.ctx = ctx

	if err := s.setUp(); err != nil {
		return err
	}

	if err := s.loadDump(); err != nil {
		// a strict refusal must not let the final dump overwrite the refused file
		if errors.Is(err, sketch.IncompatibleSketchError) {
			return err
		}
		log.Warn().Err(err).Msg("[dump] starting with an empty sketch")
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.dumper.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		s.runStatsLogger(gCtx)
		return nil
	})
	g.Go(func() error {
		return serve(gCtx)
	})

	log.Info().Msg("[sketchd] has been started")

	err := g.Wait()
	log.Info().Msg("[sketchd] has been stopped")
	return err
}

// Sketch is available once Run has set the service up.
func (s *Service[K]) Sketch() *sketch.Synced[K] {
	return s.sketch
}
