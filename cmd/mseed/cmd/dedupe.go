package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

// dedupeCmd represents the dedupe command
var dedupeCmd = &cobra.Command{
	Use:   "dedupe <output> <input>...",
	Short: "Drop duplicate records",
	Long: `Copy records from the inputs to the output, dropping records that
repeat an earlier record of the same channel: same start time within half a
sample, same sample count, same length and identical data.

Example:
  mseed dedupe clean.mseed a.mseed b.mseed`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[0], err)
		}
		defer out.Close()

		idx := container.NewDedupIndex()
		m := container.GetMetrics()
		w := mseed.NewWriter(out)

		kept, dropped := 0, 0
		for _, path := range args[1:] {
			_, err := forEachRecord(path, nil, func(r *mseed.Record) error {
				if idx.Seen(r) {
					dropped++
					m.DuplicateDropped()
					return nil
				}
				kept++
				return w.Write(r)
			})
			if err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}

		cmd.Printf("%d records kept, %d duplicates dropped across %d channels\n", kept, dropped, idx.Size())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
}
