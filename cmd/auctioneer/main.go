package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrta-fleet/auction/internal/config"
	"github.com/mrta-fleet/auction/pkg/logging"
	"github.com/mrta-fleet/auction/pkg/resourcemanager"
)

var (
	cfgFile  string
	robotIDs []string
	rootCmd  *cobra.Command
)

func main() {
	rootCmd = &cobra.Command{
		Use:   "auctioneer",
		Short: "MRTA auction orchestrator",
		Long:  "Runs the central auctioneer: opens rounds, collects bids, and allocates tasks across a fleet of bidders.",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.AddCommand(startCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the auctioneer process",
		RunE:  runStart,
	}
	cmd.Flags().StringSliceVar(&robotIDs, "robot", nil, "robot id participating in the fleet (repeatable)")
	cmd.MarkFlagRequired("robot")
	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(logging.Config{
		Level:       logging.Level(cfg.Logging.Level),
		Format:      cfg.Logging.Format,
		ServiceName: "auctioneer",
	})

	ztp := time.Now().Truncate(time.Second)
	mgr, err := resourcemanager.New(cfg, robotIDs, ztp, log)
	if err != nil {
		return fmt.Errorf("building resource manager: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	log.Info().Int("n_robots", len(robotIDs)).Time("zero_timepoint", ztp).Msg("auctioneer starting")

	if err := mgr.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("resource manager stopped: %w", err)
	}
	return nil
}
