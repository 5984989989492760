package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"turbodelete/internal/config"
	"turbodelete/internal/database"
	"turbodelete/internal/exitcodes"
)

// usageError marks mistakes on the command line, as opposed to database failures
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

type app struct {
	dbPath     string
	jsonOutput bool
	db         *database.HistoryDB
	out        io.Writer
}

func main() {
	a := &app{out: os.Stdout}
	root := a.rootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(exitcodes.InvalidUsage)
		}
		os.Exit(exitcodes.RuntimeError)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "turbodelete-history",
		Short:         "Query the turbodelete deletion history",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewHistoryDB(a.dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database %s: %w", a.dbPath, err)
			}
			a.db = db
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.db == nil {
				return nil
			}
			return a.db.Close()
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", config.DefaultHistoryPath(), "Path to history database")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output in JSON format")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})
	root.SetOut(a.out)

	root.AddCommand(
		a.recentCmd(),
		a.failuresCmd(),
		a.pathCmd(),
		a.statsCmd(),
		a.pruneCmd(),
		a.vacuumCmd(),
	)
	return root
}

func (a *app) recentCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "recent [N]",
		Short:   "Show the N most recent targets (default 20)",
		Example: "  turbodelete-history recent 10",
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := 20
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return usageError{fmt.Errorf("invalid count %q", args[0])}
				}
				limit = n
			}
			records, err := a.db.GetRecentTargets(limit)
			if err != nil {
				return fmt.Errorf("failed to get recent targets: %w", err)
			}
			return a.printRecords(records)
		},
	}
}

func (a *app) failuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "failures",
		Short: "Show targets that were refused, missing or not fully removed",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.db.GetFailedTargets()
			if err != nil {
				return fmt.Errorf("failed to get failed targets: %w", err)
			}
			return a.printRecords(records)
		},
	}
}

func (a *app) pathCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "path PATTERN",
		Short:   "Show targets matching a path pattern (SQL LIKE syntax)",
		Example: "  turbodelete-history path '/home/%/node_modules'",
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.db.GetTargetsByPath(args[0])
			if err != nil {
				return fmt.Errorf("failed to query by path: %w", err)
			}
			if !a.jsonOutput {
				fmt.Fprintf(a.out, "Targets matching path pattern: %s\n\n", args[0])
			}
			return a.printRecords(records)
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show deletion statistics",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return usageError{fmt.Errorf("--days must be positive")}
			}
			stats, err := a.db.GetTargetStats(days)
			if err != nil {
				return fmt.Errorf("failed to get statistics: %w", err)
			}
			if a.jsonOutput {
				return a.printJSON(stats)
			}
			a.printStats(stats, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Number of days for statistics")
	return cmd
}

func (a *app) pruneCmd() *cobra.Command {
	var olderThan int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete history rows older than --older-than days",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return usageError{fmt.Errorf("--older-than must be positive")}
			}
			n, err := a.db.DeleteOldRecords(olderThan)
			if err != nil {
				return fmt.Errorf("failed to prune history: %w", err)
			}
			if a.jsonOutput {
				return a.printJSON(map[string]int64{"deleted": n})
			}
			fmt.Fprintf(a.out, "Deleted %d records older than %d days\n", n, olderThan)
			return nil
		},
	}
	cmd.Flags().IntVar(&olderThan, "older-than", 90, "Age in days")
	return cmd
}

func (a *app) vacuumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the history database",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.db.Vacuum(); err != nil {
				return fmt.Errorf("failed to vacuum: %w", err)
			}
			stats, err := a.db.GetDatabaseStats()
			if err != nil {
				return fmt.Errorf("failed to read database stats: %w", err)
			}
			if a.jsonOutput {
				return a.printJSON(stats)
			}
			size, _ := stats["database_size_bytes"].(int64)
			total, _ := stats["total_records"].(int64)
			fmt.Fprintf(a.out, "Vacuum complete: %d records, %s\n", total, humanize.IBytes(uint64(size)))
			return nil
		},
	}
}

func (a *app) printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func (a *app) printStats(stats *database.TargetStats, days int) {
	fmt.Fprintf(a.out, "Deletion Statistics (Last %d days)\n", days)
	fmt.Fprintf(a.out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(a.out, "Total Targets:    %d\n", stats.TotalTargets)
	fmt.Fprintf(a.out, "Dry Runs:         %d\n", stats.DryRuns)
	fmt.Fprintf(a.out, "Repaired:         %d\n", stats.Repaired)
	fmt.Fprintf(a.out, "Entries Removed:  %s\n", humanize.Comma(stats.TotalEntries))
	fmt.Fprintf(a.out, "Space Freed:      %s\n", humanize.IBytes(uint64(max(stats.TotalBytesReclaimed, 0))))
	fmt.Fprintf(a.out, "Avg Duration:     %s\n\n", time.Duration(stats.AvgDurationMs*float64(time.Millisecond)).Round(time.Millisecond))

	if len(stats.ByStatus) > 0 {
		statuses := make([]string, 0, len(stats.ByStatus))
		for s := range stats.ByStatus {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)

		fmt.Fprintln(a.out, "By Status:")
		for _, s := range statuses {
			fmt.Fprintf(a.out, "  %-16s %d\n", s, stats.ByStatus[s])
		}
	}
}

func (a *app) printRecords(records []database.TargetRecord) error {
	if a.jsonOutput {
		if records == nil {
			records = []database.TargetRecord{}
		}
		return a.printJSON(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No records found")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tStatus\tType\tEntries\tFreed\tDuration\tPath")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t----\t-------\t-----\t--------\t----")

	for _, r := range records {
		status := r.Status
		if r.DryRun {
			status += " (dry)"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%dms\t%s\n",
			r.ID,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			status,
			r.ObjectType,
			r.Entries,
			humanize.IBytes(uint64(max(r.BytesReclaimed, 0))),
			r.DurationMs,
			r.Path)
		if r.ErrorMessage != "" {
			_, _ = fmt.Fprintf(w, "\t\t\t\t\t\t\t  %s\n", r.ErrorMessage)
		}
	}
	return w.Flush()
}
