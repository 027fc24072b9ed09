package main

import (
	"encoding/json"
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInfoCmd(*app) *cobra.Command {
	var asJson bool

	infoCmd := &cobra.Command{
		Use:   "info <snapshot>",
		Short: "Describe a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, hdr, err := readSnapshot(args[0])
			if err != nil {
				return err
			}

			var stats sketch.Stats
			switch hdr.Kind {
			case sketch.TextKind:
				stats, err = statsOf(textKeys, data)
			case sketch.IntegerKind:
				stats, err = statsOf(integerKeys, data)
			default:
				err = fmt.Errorf("%w: unknown key kind %d", sketch.FormatError, hdr.Kind)
			}
			if err != nil {
				return err
			}

			if asJson {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			return printStats(cmd, stats)
		},
	}

	infoCmd.Flags().BoolVar(&asJson, "json", false, "print as json")

	return infoCmd
}

func statsOf[K any](kk keyKind[K], data []byte) (sketch.Stats, error) {
	sk, err := sketch.FromBytes(kk.codec, data)
	if err != nil {
		return sketch.Stats{}, err
	}
	return sk.Stats(), nil
}

func printStats(cmd *cobra.Command, s sketch.Stats) error {
	total := s.TotalWeight
	if total > math.MaxInt64 {
		total = math.MaxInt64
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "kind\t%s\n", s.Kind)
	fmt.Fprintf(w, "dimensions\t%d x %d\n", s.Depth, s.Width)
	fmt.Fprintf(w, "seed\t%d\n", s.Seed)
	fmt.Fprintf(w, "total weight\t%s\n", humanize.Comma(int64(total)))
	fmt.Fprintf(w, "epsilon\t%g\n", s.Epsilon)
	fmt.Fprintf(w, "confidence\t%.6f\n", s.Confidence)
	fmt.Fprintf(w, "error bound\t%s\n", humanize.Comma(int64(min(s.ErrorBound, math.MaxInt64))))
	fmt.Fprintf(w, "size\t%s\n", humanize.IBytes(uint64(s.SizeBytes)))
	return w.Flush()
}
