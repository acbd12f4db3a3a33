// Playback Report Tool prints a playback summary from the ClickHouse events table.
//
// Usage:
//
//	go run ./tools/playback_report -days=7 -top=10
//
// Configuration:
//
//	-days: Optional. Number of days to include in the report (default: 7)
//	-top: Optional. Number of streams in the top streams table (default: 10)
//	-json: Optional. Print the summary as JSON instead of tables
//	-clickhouse-dsn: Optional. ClickHouse connection string (default: CLICKHOUSE_DSN)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/patrickwarner/streamlytics/internal/analytics"
	"github.com/patrickwarner/streamlytics/internal/config"
	"github.com/patrickwarner/streamlytics/internal/observability"
	"github.com/patrickwarner/streamlytics/internal/reporting"
)

func main() {
	cfg := config.Load()
	var (
		days    = flag.Int("days", 7, "Number of days to include in report")
		top     = flag.Int("top", 10, "Number of top streams to list")
		asJSON  = flag.Bool("json", false, "Print the report as JSON")
		dsn     = flag.String("clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse DSN")
		timeout = flag.Duration("timeout", 30*time.Second, "Query timeout")
	)
	flag.Parse()

	if *dsn == "" {
		fmt.Fprintf(os.Stderr, "Error: clickhouse-dsn or CLICKHOUSE_DSN is required\n")
		flag.Usage()
		os.Exit(1)
	}

	ch, err := analytics.InitClickHouse(*dsn, analytics.PoolConfig{MaxOpenConns: 2, MaxIdleConns: 1}, observability.NewNoOpRegistry())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to ClickHouse: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	summary, err := reporting.GeneratePlaybackReport(ctx, ch.DB, *days, *top)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(summary)
		return
	}
	printPlaybackReport(summary)
}

func printPlaybackReport(summary *reporting.PlaybackSummary) {
	fmt.Printf("===================================================================\n")
	fmt.Printf("                        PLAYBACK REPORT                            \n")
	fmt.Printf("===================================================================\n")
	fmt.Printf("Report Period: %d days (ending %s)\n\n", summary.Days, time.Now().Format("2006-01-02"))

	total := summary.Total
	fmt.Printf("TOTALS\n")
	fmt.Printf("-------------------------------------------------------------------\n")
	fmt.Printf("Plays:        %s\n", formatNumber(total.Plays))
	fmt.Printf("Pauses:       %s (%.2f%%)\n", formatNumber(total.Pauses), total.PauseRate)
	fmt.Printf("Seeks:        %s (%.2f%%)\n", formatNumber(total.Seeks), total.SeekRate)
	fmt.Printf("Play next:    %s (%.2f%%)\n", formatNumber(total.PlayNexts), total.NextRate)
	fmt.Printf("Screens:      %s\n", formatNumber(total.Screens))
	fmt.Printf("Peak users:   %s\n\n", formatNumber(total.Users))

	if len(summary.Daily) > 0 {
		fmt.Printf("DAILY BREAKDOWN\n")
		fmt.Printf("-------------------------------------------------------------------\n")
		fmt.Printf("Date       |    Plays |   Pauses |    Seeks | Play next |  Users\n")
		for _, d := range summary.Daily {
			fmt.Printf("%-10s | %8s | %8s | %8s | %9s | %6s\n",
				d.Date.Format("2006-01-02"),
				formatNumber(d.Plays),
				formatNumber(d.Pauses),
				formatNumber(d.Seeks),
				formatNumber(d.PlayNexts),
				formatNumber(d.Users),
			)
		}
		fmt.Printf("\n")
	}

	if len(summary.TopStreams) > 0 {
		fmt.Printf("TOP STREAMS\n")
		fmt.Printf("-------------------------------------------------------------------\n")
		fmt.Printf("%-24s | %8s | %6s\n", "Item", "Plays", "Users")
		for _, s := range summary.TopStreams {
			fmt.Printf("%-24s | %8s | %6s\n", s.ItemID, formatNumber(s.Plays), formatNumber(s.Users))
		}
	}
	fmt.Printf("===================================================================\n")
}

// formatNumber adds thousands separators: 1234567 becomes "1,234,567".
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}
	result := ""
	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(digit)
	}
	return result
}
