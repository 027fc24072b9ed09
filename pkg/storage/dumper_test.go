package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
}

func newDumpConfig(t *testing.T, format, policy string) *config.Sketch {
	t.Helper()
	cfg := config.Default()
	cfg.Sketch.Persistence.Dump = config.Dump{
		IsEnabled:    true,
		Format:       format,
		Dir:          t.TempDir(),
		Name:         "sketch",
		MaxFiles:     3,
		RotatePolicy: policy,
	}
	return cfg
}

func newFilled(t *testing.T, seed uint64) *sketch.Synced[string] {
	t.Helper()
	sk, err := sketch.NewString(128, 4, seed)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		sk.Add("key-" + strconv.Itoa(i%97))
	}
	return sketch.NewSynced(sk)
}

func TestDumpAndLoadRoundTrip(t *testing.T) {
	for _, format := range []string{"raw", "gzip", "zstd"} {
		t.Run(format, func(t *testing.T) {
			cfg := newDumpConfig(t, format, "fixed")
			src := newFilled(t, 7)
			require.NoError(t, NewDumper(cfg, src, sketch.TextCodec[string]{}).Dump(context.Background()))

			_, err := os.Stat(filepath.Join(cfg.Sketch.Persistence.Dump.Dir, "sketch"+extension(format)))
			require.NoError(t, err)

			empty, err := sketch.NewString(16, 2, 1)
			require.NoError(t, err)
			dst := sketch.NewSynced(empty)
			require.NoError(t, NewDumper(cfg, dst, sketch.TextCodec[string]{}).Load(context.Background()))

			assert.Equal(t, src.ToBytes(), dst.ToBytes())
			assert.Equal(t, uint64(1000), dst.TotalWeight())
		})
	}
}

func TestRingRotationKeepsMaxFiles(t *testing.T) {
	cfg := newDumpConfig(t, "gzip", "ring")
	sk := newFilled(t, 1)
	d := NewDumper(cfg, sk, sketch.TextCodec[string]{})

	for i := 0; i < 5; i++ {
		sk.Add("round-" + strconv.Itoa(i))
		require.NoError(t, d.Dump(context.Background()))
		time.Sleep(2 * time.Millisecond)
	}

	files, err := getDumpFiles(cfg.Sketch.Persistence.Dump.Dir, "sketch", ".cms.gz")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	want := sk.ToBytes()
	sk.Reset()
	require.NoError(t, d.Load(context.Background()))
	assert.Equal(t, want, sk.ToBytes(), "newest dump is restored")
}

func TestLoadDetectsCorruption(t *testing.T) {
	cfg := newDumpConfig(t, "raw", "fixed")
	sk := newFilled(t, 3)
	d := NewDumper(cfg, sk, sketch.TextCodec[string]{})
	require.NoError(t, d.Dump(context.Background()))

	path := filepath.Join(cfg.Sketch.Persistence.Dump.Dir, "sketch.cms")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[40] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	before := sk.ToBytes()
	err = d.Load(context.Background())
	assert.True(t, errors.Is(err, ChecksumMismatchError), "got %v", err)
	assert.Equal(t, before, sk.ToBytes(), "failed load must keep the current sketch")
}

func TestLoadRejectsForeignKeyKind(t *testing.T) {
	cfg := newDumpConfig(t, "raw", "fixed")
	require.NoError(t, NewDumper(cfg, newFilled(t, 3), sketch.TextCodec[string]{}).Dump(context.Background()))

	ints, err := sketch.NewInt(16, 2, 1)
	require.NoError(t, err)
	err = NewDumper(cfg, sketch.NewSynced(ints), sketch.IntegerCodec[int64]{}).Load(context.Background())
	assert.True(t, errors.Is(err, sketch.FormatError), "got %v", err)
}

func TestLoadShapePrecedence(t *testing.T) {
	cfg := newDumpConfig(t, "raw", "fixed")
	src := newFilled(t, 7)
	require.NoError(t, NewDumper(cfg, src, sketch.TextCodec[string]{}).Dump(context.Background()))

	small, err := sketch.NewString(16, 2, 1)
	require.NoError(t, err)

	cfg.Sketch.Persistence.Dump.Strict = true
	dst := sketch.NewSynced(small)
	err = NewDumper(cfg, dst, sketch.TextCodec[string]{}).Load(context.Background())
	assert.True(t, errors.Is(err, sketch.IncompatibleSketchError), "got %v", err)
	assert.Equal(t, 16, dst.Stats().Width, "refused dump must keep the configured sketch")
	assert.Zero(t, dst.TotalWeight())

	shaped, err := sketch.NewString(128, 4, 7)
	require.NoError(t, err)
	same := sketch.NewSynced(shaped)
	require.NoError(t, NewDumper(cfg, same, sketch.TextCodec[string]{}).Load(context.Background()))
	assert.Equal(t, src.ToBytes(), same.ToBytes())

	cfg.Sketch.Persistence.Dump.Strict = false
	require.NoError(t, NewDumper(cfg, dst, sketch.TextCodec[string]{}).Load(context.Background()))
	assert.Equal(t, 128, dst.Stats().Width, "dump takes precedence when not strict")
}

func TestDumperErrors(t *testing.T) {
	cfg := newDumpConfig(t, "raw", "fixed")
	d := NewDumper(cfg, newFilled(t, 1), sketch.TextCodec[string]{})
	assert.True(t, errors.Is(d.Load(context.Background()), NoDumpFoundError))

	ring := newDumpConfig(t, "raw", "ring")
	assert.True(t, errors.Is(NewDumper(ring, newFilled(t, 1), sketch.TextCodec[string]{}).Load(context.Background()), NoDumpFoundError))

	cfg.Sketch.Persistence.Dump.IsEnabled = false
	assert.True(t, errors.Is(d.Dump(context.Background()), DumpIsNotEnabledError))
	assert.True(t, errors.Is(d.Load(context.Background()), DumpIsNotEnabledError))
}

func TestRunDumpsOnShutdown(t *testing.T) {
	cfg := newDumpConfig(t, "zstd", "fixed")
	cfg.Sketch.Persistence.Dump.Interval = 10 * time.Millisecond
	d := NewDumper(cfg, newFilled(t, 1), sketch.TextCodec[string]{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	_, err := os.Stat(filepath.Join(cfg.Sketch.Persistence.Dump.Dir, "sketch.cms.zst"))
	assert.NoError(t, err)
}
