package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/TheBoringRats/ratcrowler/internal/config"
	"github.com/TheBoringRats/ratcrowler/internal/domain"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
	"github.com/TheBoringRats/ratcrowler/internal/progress"
)

// printStatus renders the durable progress record without touching any
// database, so it works while a crawl is running or long after one stopped.
func printStatus(cfg *config.Config) error {
	tracker := progress.NewTracker(cfg.Progress.Path, logger.NewNoop())

	p, err := tracker.Load(cfg.Crawler.BatchSize)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Crawl Progress")

	t.AppendRows([]table.Row{
		{"Current page", p.CurrentPage},
		{"Batch size", p.BatchSize},
		{"Total URLs", p.TotalURLs},
		{"Processed", p.Processed},
		{"Successful", p.Succeeded},
		{"Failed", p.Failed},
		{"Success rate", successRate(p.Succeeded, p.Failed)},
		{"Session", orDash(p.ActiveSessionID)},
		{"Running", strconv.FormatBool(p.Running)},
		{"Last update", lastUpdate(p)},
	})

	t.Render()

	return nil
}

func successRate(succeeded, failed int) string {
	total := succeeded + failed
	if total == 0 {
		return "-"
	}

	return fmt.Sprintf("%.1f%%", 100*float64(succeeded)/float64(total))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func lastUpdate(p domain.Progress) string {
	if p.UpdatedAt.IsZero() {
		return "never"
	}

	return p.UpdatedAt.Format("2006-01-02 15:04:05 MST")
}
