package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tutorgate/tutorgate/internal/process"
	"github.com/tutorgate/tutorgate/internal/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway service",
	Long:  `Start the tutoring gateway service in the foreground, or detached with --background.`,
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolP("background", "b", false, "start the service detached and return once it is up")
}

func runStart(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(verbose)

	if background, _ := cmd.Flags().GetBool("background"); background {
		return runStartBackground()
	}

	if err := ensureConfigExists(); err != nil {
		return err
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return err
	}

	color.Green("Starting %s v%s...", AppName, Version)
	logger.Info("Starting server",
		"host", cfg.Host,
		"port", cfg.Port,
		"agents", len(cfg.Agents),
	)

	procMgr := process.NewManager(baseDir)
	if err := procMgr.WritePID(); err != nil {
		return err
	}
	defer procMgr.CleanupPID()

	srv, err := server.New(cfgMgr, logger)
	if err != nil {
		return err
	}

	return srv.Start()
}

func runStartBackground() error {
	if err := ensureConfigExists(); err != nil {
		return err
	}

	procMgr := process.NewManager(baseDir)
	started, err := procMgr.StartServiceIfNeeded()
	if err != nil {
		return err
	}

	if !started {
		color.Yellow("Service is already running (PID %d)", procMgr.ReadPID())
		return nil
	}

	color.Green("Service started in the background (PID %d)", procMgr.ReadPID())
	return nil
}
