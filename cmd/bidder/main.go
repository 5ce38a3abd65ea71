// Command bidder runs a single robot's Bidder in isolation. The pub/sub
// transport it dials (pkg/bus.Bus) is, per spec.md §6, an external
// collaborator outside this core's scope; this binary wires a Local
// in-process bus as the reference instantiation, the same way cmd/auctioneer
// does, and is intended to be embedded in a harness that bridges Local to a
// real transport rather than run standalone against a remote auctioneer.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrta-fleet/auction/internal/config"
	"github.com/mrta-fleet/auction/pkg/bidder"
	"github.com/mrta-fleet/auction/pkg/bidding"
	"github.com/mrta-fleet/auction/pkg/bus"
	"github.com/mrta-fleet/auction/pkg/logging"
	"github.com/mrta-fleet/auction/pkg/timetable"
)

var (
	cfgFile string
	robotID string
	rootCmd *cobra.Command
)

func main() {
	rootCmd = &cobra.Command{
		Use:   "bidder",
		Short: "MRTA robot bidder",
		Long:  "Runs one robot's bidder: reacts to task announcements with bids, and commits its timetable on winning.",
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
		Short: "Start the bidder process",
		RunE:  runStart,
	}
	cmd.Flags().StringVar(&robotID, "robot-id", "", "this bidder's robot id")
	cmd.MarkFlagRequired("robot-id")
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
		ServiceName: "bidder",
	}).With("robot_id", robotID)

	rule, err := bidding.New(cfg.Bidding.Robustness, cfg.Bidding.Temporal)
	if err != nil {
		return fmt.Errorf("building bidding rule: %w", err)
	}

	ztp := time.Now().Truncate(time.Second)
	tt := timetable.New(robotID, ztp, cfg.STN.KSigma)
	b := bus.NewLocal()
	bidder.New(robotID, tt, rule, b, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("bidder starting")
	<-sigCh
	log.Info().Msg("shutdown signal received")
	return nil
}
