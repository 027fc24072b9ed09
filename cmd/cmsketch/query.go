package main

import (
	"fmt"

	"github.com/Borislavv/cmsketch/pkg/sketch"
	"github.com/spf13/cobra"
)

func newQueryCmd(*app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <snapshot> <keys...>",
		Short: "Print estimated counts of keys",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, hdr, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			switch hdr.Kind {
			case sketch.TextKind:
				return runQuery(cmd, textKeys, data, args[1:])
			case sketch.IntegerKind:
				return runQuery(cmd, integerKeys, data, args[1:])
			default:
				return fmt.Errorf("%w: unknown key kind %d", sketch.FormatError, hdr.Kind)
			}
		},
	}
}

func runQuery[K any](cmd *cobra.Command, kk keyKind[K], data []byte, keys []string) error {
	sk, err := sketch.FromBytes(kk.codec, data)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, raw := range keys {
		key, err := kk.parse(raw)
		if err != nil {
			return fmt.Errorf("key %q: %w", raw, err)
		}
		fmt.Fprintf(w, "%s\t%d\n", raw, sk.Estimate(key))
	}
	return nil
}
