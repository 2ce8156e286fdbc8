package cmd

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/mseedkit/pkg/archive"
	"github.com/ssargent/mseedkit/pkg/mseed"
)

// archiveCmd represents the archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Store and query records in a local archive",
	Long: `Manage a pebble backed archive of MiniSEED records keyed by channel
and start time.`,
}

var archivePutCmd = &cobra.Command{
	Use:   "put <file>...",
	Short: "Add records to the archive, skipping duplicates",
	Long: `Add every record of the files to the archive. Records the archive
already holds a duplicate of are skipped. Each run is recorded as a session.

Example:
  mseed archive put --dir ./archive day1.mseed day2.mseed`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		m := container.GetMetrics()
		for _, path := range args {
			session := archive.NewSession(path)
			skipped, err := forEachRecord(path, nil, func(r *mseed.Record) error {
				if r.Heartbeat() {
					return nil
				}
				stored, err := a.Put(r)
				m.ArchivePut(stored, err)
				if err != nil {
					return err
				}
				if stored {
					session.Stored++
					session.AddChannel(r.SeedName())
				} else {
					session.Duplicates++
				}
				return nil
			})
			session.Skipped = skipped
			session.Finished = time.Now().UTC()
			if saveErr := a.SaveSession(session); saveErr != nil && err == nil {
				err = saveErr
			}
			if err != nil {
				return err
			}
			cmd.Printf("session %s: %s stored=%d duplicates=%d skipped=%d\n",
				session.ID, path, session.Stored, session.Duplicates, session.Skipped)
		}
		return nil
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived channels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		channels, err := a.Channels()
		if err != nil {
			return err
		}
		for _, ch := range channels {
			cmd.Printf("%s records=%d first=%s last=%s\n",
				ch.Name, ch.Records, formatMicros(ch.First), formatMicros(ch.Last))
		}
		cmd.Printf("%d channels\n", len(channels))
		return nil
	},
}

var archiveSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List archive ingest sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.Sessions()
		if err != nil {
			return err
		}
		for _, s := range sessions {
			cmd.Printf("%s %s source=%s stored=%d duplicates=%d skipped=%d channels=%d\n",
				s.ID, s.Started.Format(time.RFC3339), s.Source, s.Stored, s.Duplicates, s.Skipped, len(s.Channels))
		}
		return nil
	},
}

var archiveExportCmd = &cobra.Command{
	Use:   "export <nscl> <output>",
	Short: "Write the archived records of a channel to a file",
	Long: `Write every archived record of a channel starting in [--from, --to)
to the output file in time order. The channel is given as the 12 character
network, station, channel and location code.

Example:
  mseed archive export "IUANMO BHZ00" anmo.mseed --from 2024-01-01T00:00:00Z`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := timeRange(cmd)
		if err != nil {
			return err
		}
		a, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[1], err)
		}
		defer out.Close()

		w := mseed.NewWriter(out)
		n := 0
		err = a.Scan(mseed.ParseNSCL(args[0]), from, to, func(r *mseed.Record) error {
			n++
			return w.Write(r)
		})
		if err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		cmd.Printf("%d records exported\n", n)
		return nil
	},
}

func openArchive(cmd *cobra.Command) (*archive.Archive, error) {
	dir, _ := cmd.Flags().GetString("dir")
	a, err := container.OpenArchive(dir)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func timeRange(cmd *cobra.Command) (int64, int64, error) {
	from, to := int64(math.MinInt64), int64(math.MaxInt64)
	if s, _ := cmd.Flags().GetString("from"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --from: %w", err)
		}
		from = t.UnixMicro()
	}
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --to: %w", err)
		}
		to = t.UnixMicro()
	}
	if from >= to {
		return 0, 0, fmt.Errorf("--from must be before --to")
	}
	return from, to, nil
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archivePutCmd, archiveListCmd, archiveSessionsCmd, archiveExportCmd)
	archiveCmd.PersistentFlags().StringP("dir", "d", "", "Archive directory (overrides archive.dir)")
	archiveExportCmd.Flags().String("from", "", "Earliest start time, RFC 3339")
	archiveExportCmd.Flags().String("to", "", "Latest start time (exclusive), RFC 3339")
}
