package sketchd

import (
	"context"
	"errors"

	"github.com/Borislavv/cmsketch/pkg/admission"
	"github.com/Borislavv/cmsketch/pkg/prometheus/metrics"
	"github.com/Borislavv/cmsketch/pkg/server"
	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/Borislavv/cmsketch/pkg/storage"
	"github.com/rs/zerolog/log"
)

func (s *Service[K]) setUp() error {
	sk, err := s.newSketch()
	if err != nil {
		return err
	}

	s.sketch = sketch.NewSynced(sk)
	s.meter = metrics.New()
	s.dumper = storage.NewDumper(s.cfg, s.sketch, s.codec)
	s.server = server.New(s.cfg, s.sketch, s.codec, s.parse, s.meter)

	if cfg := s.cfg.Sketch.Admission; cfg.Window > 0 {
		lfu, err := admission.NewTinyLFU(s.ctx, cfg, s.cfg.Sketch.Dimensions.Seed)
		if err != nil {
			return err
		}
		s.server.WithAdmission(lfu)
		log.Info().Msgf("[admission] enabled (window=%d)", cfg.Window)
	}

	log.Info().Msgf("[sketchd] %s sketch %dx%d (seed=%d, %s of counters)",
		sk.Kind(), sk.Depth(), sk.Width(), sk.Seed(), formatBytes(sk.SizeInBytes()))

	return nil
}

// newSketch prefers explicit dimensions and falls back to the configured error rate.
func (s *Service[K]) newSketch() (*sketch.Sketch[K], error) {
	box := s.cfg.Sketch
	if box.HasDimensions() {
		return sketch.New(s.codec, box.Dimensions.Width, box.Dimensions.Depth, box.Dimensions.Seed)
	}
	return sketch.FromErrorRate(s.codec, box.ErrorRate.Epsilon, box.ErrorRate.Delta, box.Dimensions.Seed)
}

func (s *Service[K]) loadDump() error {
	if !s.cfg.Sketch.Persistence.Dump.IsEnabled {
		return nil
	}
	err := s.dumper.Load(s.ctx)
	if errors.Is(err, storage.NoDumpFoundError) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
