package main

import (
	"fmt"

	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/Borislavv/cmsketch/pkg/server"
	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/spf13/pflag"
)

// sizing collects the flags which shape a new sketch. Unset flags fall back to config.
type sizing struct {
	kind    string
	epsilon float64
	delta   float64
	width   int
	depth   int
	seed    uint64
}

func (s *sizing) register(fs *pflag.FlagSet) {
	fs.StringVar(&s.kind, "kind", "", `key kind, "string" or "int"`)
	fs.Float64Var(&s.epsilon, "epsilon", 0, "relative error, (0, 1)")
	fs.Float64Var(&s.delta, "delta", 0, "failure probability, (0, 1)")
	fs.IntVar(&s.width, "width", 0, "explicit width, wins over epsilon")
	fs.IntVar(&s.depth, "depth", 0, "explicit depth, wins over delta")
	fs.Uint64Var(&s.seed, "seed", 0, "hash seed")
}

// resolve merges the flags which were actually set into a copy of cfg.
func (s *sizing) resolve(fs *pflag.FlagSet, cfg *config.Sketch) (config.SketchBox, error) {
	box := cfg.Sketch
	if fs.Changed("kind") {
		box.Kind = s.kind
	}
	if fs.Changed("epsilon") {
		box.ErrorRate.Epsilon = s.epsilon
	}
	if fs.Changed("delta") {
		box.ErrorRate.Delta = s.delta
	}
	if fs.Changed("width") {
		box.Dimensions.Width = s.width
	}
	if fs.Changed("depth") {
		box.Dimensions.Depth = s.depth
	}
	if fs.Changed("seed") {
		box.Dimensions.Seed = s.seed
	}
	if box.Kind != config.KindString && box.Kind != config.KindInt {
		return box, fmt.Errorf("%w: kind must be %q or %q, got %q", config.InvalidConfigError, config.KindString, config.KindInt, box.Kind)
	}
	return box, nil
}

// factory builds empty sketches of one shape.
func factory[K any](box config.SketchBox, codec sketch.Codec[K]) func() (*sketch.Sketch[K], error) {
	return func() (*sketch.Sketch[K], error) {
		if box.HasDimensions() {
			return sketch.New(codec, box.Dimensions.Width, box.Dimensions.Depth, box.Dimensions.Seed)
		}
		return sketch.FromErrorRate(codec, box.ErrorRate.Epsilon, box.ErrorRate.Delta, box.Dimensions.Seed)
	}
}

// keyKind pairs a codec with the parser of its textual keys.
type keyKind[K any] struct {
	codec sketch.Codec[K]
	parse server.KeyParser[K]
}

var (
	textKeys    = keyKind[string]{codec: sketch.TextCodec[string]{}, parse: server.ParseString}
	integerKeys = keyKind[int64]{codec: sketch.IntegerCodec[int64]{}, parse: server.ParseInt}
)
