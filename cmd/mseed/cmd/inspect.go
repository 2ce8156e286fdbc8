package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>...",
	Short: "Print the headers of MiniSEED records",
	Long: `Print one line per record with its channel, start time, sample count,
rate and layout. Anomalies found while parsing are printed below the record.

Examples:
  mseed inspect data.mseed
  mseed inspect --blockettes --anomalies data.mseed`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showBlockettes, _ := cmd.Flags().GetBool("blockettes")
		showAnomalies, _ := cmd.Flags().GetBool("anomalies")

		total, anomalies := 0, 0
		for _, path := range args {
			skipped, err := forEachRecord(path, nil, func(r *mseed.Record) error {
				total++
				cmd.Printf("%s\n", r)
				if !r.Heartbeat() {
					cmd.Printf("  start=%s end=%s\n",
						formatMicros(r.TimeMicros()), formatMicros(r.EndMicros()))
				}
				if showBlockettes {
					for _, b := range r.Blockettes() {
						cmd.Printf("  blockette %d at %d next %d (%d bytes)\n", b.Type(), b.Offset(), b.Next(), len(b.Bytes()))
					}
				}
				anomalies += len(r.Anomalies())
				if showAnomalies {
					for _, a := range r.Anomalies() {
						cmd.Printf("  anomaly %s\n", a.Error())
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if skipped > 0 {
				cmd.Printf("%s: %d unreadable records skipped\n", path, skipped)
			}
		}
		cmd.Printf("%d records, %d anomalies\n", total, anomalies)
		return nil
	},
}

func formatMicros(us int64) string {
	return time.UnixMicro(us).UTC().Format("2006-01-02T15:04:05.000000Z")
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolP("blockettes", "b", false, "Print the blockette chain of each record")
	inspectCmd.Flags().BoolP("anomalies", "a", false, "Print the anomalies of each record")
}
