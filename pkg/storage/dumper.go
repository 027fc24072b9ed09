package storage

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/Borislavv/cmsketch/pkg/utils"
	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

const checksumSize = 8

var (
	DumpIsNotEnabledError = errors.New("persistence mode is not enabled")
	ChecksumMismatchError = errors.New("dump checksum mismatch")
	NoDumpFoundError      = errors.New("no dump files found")
)

// nopWriteCloser wraps an io.Writer to satisfy io.WriteCloser
// with a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (n nopWriteCloser) Close() error { return nil }

type Dumper interface {
	Dump(ctx context.Context) error
	Load(ctx context.Context) error
}

// Dump persists a shared sketch as a snapshot file followed by an xxhash64 checksum of the snapshot,
// optionally compressed as a whole.
type Dump[K any] struct {
	cfg    *config.Sketch
	sketch *sketch.Synced[K]
	codec  sketch.Codec[K]
}

func NewDumper[K any](cfg *config.Sketch, sk *sketch.Synced[K], codec sketch.Codec[K]) *Dump[K] {
	return &Dump[K]{cfg: cfg, sketch: sk, codec: codec}
}

func extension(format string) string {
	switch format {
	case "gzip":
		return ".cms.gz"
	case "zstd":
		return ".cms.zst"
	default:
		return ".cms"
	}
}

func wrapWriter(format string, w io.Writer) (io.WriteCloser, error) {
	switch format {
	case "gzip":
		return gzip.NewWriter(w), nil
	case "zstd":
		return zstd.NewWriter(w)
	default:
		return nopWriteCloser{w}, nil
	}
}

func wrapReader(format string, r io.Reader) (io.ReadCloser, error) {
	switch format {
	case "gzip":
		return gzip.NewReader(r)
	case "zstd":
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return io.NopCloser(r), nil
	}
}

// Dump writes the current sketch to disk based on the configured format and rotation policy.
func (d *Dump[K]) Dump(ctx context.Context) error {
	cfg := d.cfg.Sketch.Persistence.Dump
	if !cfg.IsEnabled {
		return DumpIsNotEnabledError
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}

	ext := extension(cfg.Format)

	var finalName string
	if cfg.RotatePolicy == "ring" {
		if err := rotateOldFiles(cfg.Dir, cfg.Name, ext, cfg.MaxFiles); err != nil {
			log.Error().Err(err).Msg("[dump] rotation error")
		}
		timestamp := time.Now().UTC().Format("20060102T150405.000000000")
		finalName = fmt.Sprintf("%s.%s%s", cfg.Name, timestamp, ext)
	} else {
		finalName = cfg.Name + ext
	}
	filename := filepath.Join(cfg.Dir, finalName)
	tmpName := filename + ".tmp"

	snapshot := d.sketch.ToBytes()

	if err := writeEnvelope(tmpName, cfg.Format, snapshot); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename dump file: %w", err)
	}

	log.Info().Msgf("[dump] finished writing %d bytes to %s (elapsed: %s)", len(snapshot), filename, time.Since(start))
	return nil
}

func writeEnvelope(name, format string, snapshot []byte) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create dump temp file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close dump file: %w", cerr)
		}
	}()

	wc, err := wrapWriter(format, f)
	if err != nil {
		return fmt.Errorf("wrap writer: %w", err)
	}
	bw := bufio.NewWriterSize(wc, 1<<20)

	var sum [checksumSize]byte
	binary.LittleEndian.PutUint64(sum[:], xxhash.Sum64(snapshot))

	if _, err = bw.Write(snapshot); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if _, err = bw.Write(sum[:]); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("flush dump: %w", err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("close dump writer: %w", err)
	}
	return f.Sync()
}

// Load restores the sketch from the newest dump file, replacing the in-memory one.
func (d *Dump[K]) Load(ctx context.Context) error {
	cfg := d.cfg.Sketch.Persistence.Dump
	if !cfg.IsEnabled {
		return DumpIsNotEnabledError
	}
	start := time.Now()

	ext := extension(cfg.Format)

	var filename string
	if cfg.RotatePolicy == "ring" {
		files, err := getDumpFiles(cfg.Dir, cfg.Name, ext)
		if err != nil {
			return fmt.Errorf("get dump files: %w", err)
		}
		if len(files) == 0 {
			return fmt.Errorf("%w in %s", NoDumpFoundError, cfg.Dir)
		}
		sorted, err := sortByModTime(files)
		if err != nil {
			return fmt.Errorf("sort dump files: %w", err)
		}
		filename = sorted[len(sorted)-1]
	} else {
		filename = filepath.Join(cfg.Dir, cfg.Name+ext)
		if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", NoDumpFoundError, filename)
		}
	}

	if err := ctx.Err(); err != nil {
		log.Warn().Msg("[dump] context cancelled")
		return err
	}

	restored, err := d.read(filename, cfg.Format)
	if err != nil {
		return err
	}

	if cfg.Strict {
		if current := d.sketch.Stats(); !sameShape(current, restored) {
			return fmt.Errorf("%w: dump %s is %dx%d (seed %d), configured %dx%d (seed %d)",
				sketch.IncompatibleSketchError, filename,
				restored.Depth(), restored.Width(), restored.Seed(), current.Depth, current.Width, current.Seed)
		}
	}

	prev := d.sketch.Replace(restored)
	if !prev.Compatible(restored) {
		log.Warn().Msgf("[dump] restored sketch %dx%d (seed %d) replaces configured %dx%d (seed %d)",
			restored.Depth(), restored.Width(), restored.Seed(), prev.Depth(), prev.Width(), prev.Seed())
	}

	log.Info().Msgf("[dump] restored %s, total weight %d (elapsed: %s)", filename, restored.TotalWeight(), time.Since(start))
	return nil
}

func sameShape[K any](current sketch.Stats, restored *sketch.Sketch[K]) bool {
	return current.Width == restored.Width() && current.Depth == restored.Depth() && current.Seed == restored.Seed()
}

func (d *Dump[K]) read(filename, format string) (*sketch.Sketch[K], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open dump file: %w", err)
	}
	defer f.Close()

	rc, err := wrapReader(format, bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("wrap reader: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read dump file: %w", err)
	}
	if len(data) < checksumSize {
		return nil, fmt.Errorf("%w: %s is too short", ChecksumMismatchError, filename)
	}
	snapshot, sum := data[:len(data)-checksumSize], data[len(data)-checksumSize:]
	if xxhash.Sum64(snapshot) != binary.LittleEndian.Uint64(sum) {
		return nil, fmt.Errorf("%w: %s", ChecksumMismatchError, filename)
	}

	restored, err := sketch.FromBytes(d.codec, snapshot)
	if err != nil {
		return nil, fmt.Errorf("decode dump %s: %w", filename, err)
	}
	return restored, nil
}

// Run dumps every configured interval and once more when ctx is done.
func (d *Dump[K]) Run(ctx context.Context) {
	cfg := d.cfg.Sketch.Persistence.Dump
	if !cfg.IsEnabled {
		return
	}

	var tick <-chan time.Time
	if cfg.Interval > 0 {
		tick = utils.NewTicker(ctx, cfg.Interval)
		log.Info().Msgf("[dump] periodic dumper has been launched (each %s)", cfg.Interval)
	}

	for {
		select {
		case <-ctx.Done():
			dCtx, dCancel := context.WithTimeout(context.Background(), 9*time.Second)
			if err := d.Dump(dCtx); err != nil {
				log.Error().Err(err).Msg("[dump] failed to store dump")
			}
			dCancel()
			return
		case <-tick:
			if err := d.Dump(ctx); err != nil {
				log.Error().Err(err).Msg("[dump] periodic dump failed")
			}
		}
	}
}

// getDumpFiles returns all dump files matching baseName.*ext in dir.
func getDumpFiles(dir, baseName, ext string) ([]string, error) {
	pattern := filepath.Join(dir, baseName+".*"+ext)
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	return files, nil
}

// sortByModTime returns the paths sorted by modification time ascending, ties broken by name.
func sortByModTime(files []string) ([]string, error) {
	type fileInfo struct {
		path    string
		modTime time.Time
	}
	infos := make([]fileInfo, 0, len(files))
	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{path: f, modTime: fi.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].modTime.Equal(infos[j].modTime) {
			return infos[i].path < infos[j].path
		}
		return infos[i].modTime.Before(infos[j].modTime)
	})
	sorted := make([]string, len(infos))
	for i, info := range infos {
		sorted[i] = info.path
	}
	return sorted, nil
}

// rotateOldFiles removes oldest files so that after removal, count <= maxFiles-1.
func rotateOldFiles(dir, baseName, ext string, maxFiles int) error {
	files, err := getDumpFiles(dir, baseName, ext)
	if err != nil {
		return err
	}
	sorted, err := sortByModTime(files)
	if err != nil {
		return err
	}
	if len(sorted) < maxFiles {
		return nil
	}
	numToRemove := len(sorted) - (maxFiles - 1)
	for i := 0; i < numToRemove; i++ {
		if err := os.Remove(sorted[i]); err != nil {
			log.Error().Err(err).Msgf("[dump] failed to remove old dump file %s", sorted[i])
		}
	}
	return nil
}
