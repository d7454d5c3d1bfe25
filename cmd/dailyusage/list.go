package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jgoulah/dailyusage/internal/database"
	"github.com/spf13/cobra"
)

var (
	listName  string
	listSince string
	listUntil string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored daily usage",
	Long:  `Displays the DailyUsage rows stored in the database, newest date first.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listName, "name", "", "Filter by source name (e.g. tuya, Device3)")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only show dates since this date (YYYY-MM-DD or Nd)")
	listCmd.Flags().StringVar(&listUntil, "until", "", "Only show dates until this date (YYYY-MM-DD or Nd)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	filter := database.UsageFilter{Name: listName}

	// Parse date filters if provided
	if listSince != "" {
		since, err := parseDate(listSince, timeNow())
		if err != nil {
			return fmt.Errorf("parsing --since date: %w", err)
		}
		filter.Since = since
	}
	if listUntil != "" {
		until, err := parseDate(listUntil, timeNow())
		if err != nil {
			return fmt.Errorf("parsing --until date: %w", err)
		}
		filter.Until = until
	}

	cmd.SilenceUsage = true

	// Open database
	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	data, err := db.ListUsage(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("listing daily usage: %w", err)
	}

	if len(data) == 0 {
		fmt.Fprintln(out, "No daily usage found")
		return nil
	}

	fmt.Fprintln(out, "----------------------------------------------------------")
	fmt.Fprintf(out, "%-12s  %-10s  %12s  %12s  %10s\n", "Date", "Name", "First", "Last", "Usage")
	fmt.Fprintln(out, "----------------------------------------------------------")

	var total float64
	for _, record := range data {
		usage := "-"
		if c, ok := record.Consumption(); ok {
			usage = humanize.FormatFloat("#,###.##", c)
			total += c
		}
		fmt.Fprintf(out, "%-12s  %-10s  %12s  %12s  %10s\n",
			record.DateString(), record.Name, formatValue(record.First), formatValue(record.Last), usage)
	}

	fmt.Fprintln(out, "----------------------------------------------------------")
	fmt.Fprintf(out, "Total: %s (%d records)\n", humanize.FormatFloat("#,###.##", total), len(data))

	return nil
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return humanize.FormatFloat("#,###.##", *v)
}
