package main

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Borislavv/cmsketch/pkg/config"
	"github.com/Borislavv/cmsketch/pkg/heavy"
	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const maxLineSize = 1 << 20

func newCountCmd(a *app) *cobra.Command {
	var (
		size sizing
		out  string
		top  int
	)

	countCmd := &cobra.Command{
		Use:   "count [files...]",
		Short: "Count newline-separated keys into a snapshot",
		Long: "Reads one key per line from each file (stdin when none is given) and writes a snapshot to --out.\n" +
			"Files are counted in parallel into separate sketches which are merged at the end.",
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := size.resolve(cmd.Flags(), a.cfg)
			if err != nil {
				return err
			}
			if box.Kind == config.KindInt {
				return runCount(cmd, integerKeys, box, args, out, top)
			}
			return runCount(cmd, textKeys, box, args, out, top)
		},
	}

	size.register(countCmd.Flags())
	countCmd.Flags().StringVarP(&out, "out", "o", "", "snapshot file to write")
	countCmd.Flags().IntVar(&top, "top", 0, "print the n most frequent keys")
	_ = countCmd.MarkFlagRequired("out")

	return countCmd
}

func runCount[K cmp.Ordered](cmd *cobra.Command, kk keyKind[K], box config.SketchBox, files []string, out string, top int) error {
	start := time.Now()
	newSketch := factory(box, kk.codec)
	k := max(top, 1)

	var trackers []*heavy.Tracker[K]
	if len(files) == 0 {
		tr, err := countStream(cmd.Context(), kk, newSketch, k, "stdin", cmd.InOrStdin())
		if err != nil {
			return err
		}
		trackers = append(trackers, tr)
	} else {
		trackers = make([]*heavy.Tracker[K], len(files))
		g, gCtx := errgroup.WithContext(cmd.Context())
		for i, name := range files {
			i, name := i, name
			g.Go(func() error {
				f, err := os.Open(name)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				trackers[i], err = countStream(gCtx, kk, newSketch, k, name, f)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	merged := trackers[0]
	for _, tr := range trackers[1:] {
		if err := merged.Merge(tr); err != nil {
			return err
		}
	}

	sk := merged.Sketch()
	if err := writeSnapshot(out, sk.ToBytes()); err != nil {
		return err
	}
	log.Info().Msgf("[count] %d input(s), total weight %d, written to %s (elapsed: %s)",
		max(len(files), 1), sk.TotalWeight(), out, time.Since(start))

	if top > 0 {
		w := cmd.OutOrStdout()
		for _, c := range merged.Top() {
			fmt.Fprintf(w, "%v\t%d\n", c.Key, c.Estimate)
		}
	}
	return nil
}

// countStream feeds every non-empty line of r into a fresh tracker.
func countStream[K cmp.Ordered](
	ctx context.Context,
	kk keyKind[K],
	newSketch func() (*sketch.Sketch[K], error),
	k int,
	name string,
	r io.Reader,
) (*heavy.Tracker[K], error) {
	sk, err := newSketch()
	if err != nil {
		return nil, err
	}
	tr, err := heavy.NewTracker(sk, k)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for line := 1; scanner.Scan(); line++ {
		if line%4096 == 0 {
			if err = ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := strings.TrimSuffix(scanner.Text(), "\r")
		if raw == "" {
			continue
		}
		key, err := kk.parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		if err = tr.Observe(key, 1); err != nil {
			return nil, err
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return tr, nil
}

func writeSnapshot(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

func readSnapshot(path string) ([]byte, sketch.Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sketch.Header{}, fmt.Errorf("read snapshot: %w", err)
	}
	hdr, err := sketch.PeekHeader(data)
	if err != nil {
		return nil, sketch.Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return data, hdr, nil
}
