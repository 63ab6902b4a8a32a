// Package cmd implements the command-line interface for ratcrowler.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TheBoringRats/ratcrowler/internal/app"
	"github.com/TheBoringRats/ratcrowler/internal/config"
	"github.com/TheBoringRats/ratcrowler/internal/database"
	"github.com/TheBoringRats/ratcrowler/internal/logger"
	"github.com/TheBoringRats/ratcrowler/internal/progress"
)

// Process exit codes. Monitoring distinguishes a crawl failure from an
// unrecoverable store problem or a bad configuration.
const (
	ExitOK       = 0
	ExitRunError = 1
	ExitStore    = 2
	ExitConfig   = 3
)

var version = "dev"

var (
	cfgFile    string
	showStatus bool
	doReset    bool
	skipPrompt bool
)

var rootCmd = &cobra.Command{
	Use:   "ratcrowler",
	Short: "A batch-resumable web crawler and link analyzer",
	Long: `ratcrowler crawls the web in resumable batches, stores pages and the
link graph across rotating database targets, and periodically computes
PageRank and domain authority scores.

Without flags it runs the crawl until the frontier is exhausted or the
process is signalled. SIGINT or SIGTERM drains gracefully; a second
signal stops immediately.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.Flags().BoolVar(&showStatus, "status", false, "print crawl progress and exit")
	rootCmd.Flags().BoolVar(&doReset, "reset", false, "clear durable progress and exit")
	rootCmd.Flags().BoolVar(&skipPrompt, "yes", false, "skip the --reset confirmation prompt")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("ratcrowler version %s\n", version)
		},
	})
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return exitCode(err)
	}

	return ExitOK
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	switch {
	case showStatus:
		return printStatus(cfg)
	case doReset:
		return resetProgress(cfg)
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}

	return a.Run(cmd.Context())
}

// resetProgress removes the progress file so the next run starts from page
// one. Destructive, so it asks first unless --yes was given.
func resetProgress(cfg *config.Config) error {
	if !skipPrompt {
		fmt.Printf("Clear crawl progress at %s? [y/N] ", cfg.Progress.Path)

		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}

		if strings.ToLower(strings.TrimSpace(line)) != "y" {
			fmt.Println("Aborted.")

			return nil
		}
	}

	tracker := progress.NewTracker(cfg.Progress.Path, logger.NewNoop())
	if err := tracker.Reset(); err != nil {
		return err
	}

	fmt.Println("Progress cleared.")

	return nil
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}

	if errors.Is(err, database.ErrNoCapacity) || errors.Is(err, database.ErrStoreFailure) {
		return ExitStore
	}

	return ExitRunError
}
