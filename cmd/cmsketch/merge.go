package main

import (
	"fmt"

	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMergeCmd(*app) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <out> <snapshots...>",
		Short: "Merge compatible snapshots into one",
		Long:  "All inputs must share key kind, width, depth and seed. The result counts the union of their streams.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, hdr, err := readSnapshot(args[1])
			if err != nil {
				return err
			}
			switch hdr.Kind {
			case sketch.TextKind:
				return runMerge(textKeys, args[0], args[1:])
			case sketch.IntegerKind:
				return runMerge(integerKeys, args[0], args[1:])
			default:
				return fmt.Errorf("%w: unknown key kind %d", sketch.FormatError, hdr.Kind)
			}
		},
	}
}

func runMerge[K any](kk keyKind[K], out string, inputs []string) error {
	var merged *sketch.Sketch[K]
	for _, path := range inputs {
		data, _, err := readSnapshot(path)
		if err != nil {
			return err
		}
		sk, err := sketch.FromBytes(kk.codec, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if merged == nil {
			merged = sk
			continue
		}
		if err = merged.Merge(sk); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := writeSnapshot(out, merged.ToBytes()); err != nil {
		return err
	}
	log.Info().Msgf("[merge] %d snapshot(s) merged into %s, total weight %d", len(inputs), out, merged.TotalWeight())
	return nil
}
