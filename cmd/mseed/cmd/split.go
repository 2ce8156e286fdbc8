package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

// splitCmd represents the split command
var splitCmd = &cobra.Command{
	Use:   "split <input> <output>",
	Short: "Resegment records into smaller records",
	Long: `Split every record longer than the target size into records of the
target size. Records built from independently compressed units are cut on
frame boundaries; others are decoded and recompressed. Records that cannot
be split are written through unchanged and counted as failed.

Examples:
  mseed split big.mseed small.mseed
  mseed split --target 1024 big.mseed out.mseed`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetInt("target")
		if cmd.Flags().Changed("target") {
			container.GetConfig().Resegment.TargetSize = target
		}

		out, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[1], err)
		}
		defer out.Close()

		p := container.NewPool()
		opts := container.ResegmentOptions(p)
		w := mseed.NewWriter(out)
		logger := container.GetLogger()

		inputs, outputs, failed := 0, 0, 0
		_, err = forEachRecord(args[0], p, func(r *mseed.Record) error {
			defer p.ReleaseAll()
			inputs++
			if r.Heartbeat() {
				return nil
			}
			recs, err := r.Resegment(opts)
			if err != nil {
				// a bad record never stops the stream; it is written unchanged
				failed++
				logger.Warn("resegment failed, writing record unchanged", slog.String("record", r.String()), slog.Any("error", err))
				if err := w.Write(r); err != nil {
					return err
				}
				outputs++
				return nil
			}
			for _, rec := range recs {
				if err := w.Write(rec); err != nil {
					return err
				}
			}
			outputs += len(recs)
			return nil
		})
		if err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		p.Trim(container.GetConfig().Pool.MaxFree)

		cmd.Printf("%d records in, %d records out, %d failed, %d bytes written\n", inputs, outputs, failed, w.Written())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().IntP("target", "t", mseed.DefaultRecordLength, "Target record length in bytes")
}
