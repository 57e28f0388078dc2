package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sadopc/stride/internal/api"
	"github.com/sadopc/stride/internal/steps"
	"github.com/sadopc/stride/internal/store"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "Print today's step count",
	Long: `Prints today's step count and goal. The running daemon is asked first;
with --offline, or when no daemon answers, the shared store is read
directly.`,
	Args: cobra.NoArgs,
	RunE: runSteps,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start tracking in the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTracking(cmd, true)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop tracking in the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTracking(cmd, false)
	},
}

var stepsOffline bool

func init() {
	stepsCmd.Flags().BoolVar(&stepsOffline, "offline", false, "Read the store without asking the daemon")
}

func runSteps(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	if !stepsOffline {
		ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
		defer cancel()
		if v, err := api.NewClient(cfg.ControlAddress).Steps(ctx); err == nil {
			printSteps(cmd.OutOrStdout(), v)
			return nil
		}
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := storedView(s, time.Now())
	if err != nil {
		return err
	}
	printSteps(cmd.OutOrStdout(), v)
	return nil
}

// storedView builds the same view the daemon serves from the store alone.
func storedView(s *store.Store, now time.Time) (api.StepsView, error) {
	n, err := steps.StoredToday(s, now)
	if err != nil {
		return api.StepsView{}, err
	}
	goal, err := s.GetInt(store.KeyDailyGoal)
	if err != nil || goal <= 0 {
		goal = store.DefaultGoal
	}
	tracking, _ := s.GetBool(store.KeyTracking)
	return api.StepsView{
		Date:     steps.DayOf(now),
		Steps:    n,
		Goal:     goal,
		Tracking: tracking,
	}, nil
}

func printSteps(w io.Writer, v api.StepsView) {
	count := color.New(color.Bold)
	if v.Goal > 0 && v.Steps >= v.Goal {
		count = color.New(color.Bold, color.FgGreen)
	}
	state := color.New(color.Faint).Sprint("not tracking")
	if v.Tracking {
		state = color.GreenString("tracking")
	}
	fmt.Fprintf(w, "%s  %s / %d steps  (%s)\n", v.Date, count.Sprint(v.Steps), v.Goal, state)
}

func runTracking(cmd *cobra.Command, on bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	client := api.NewClient(cfg.ControlAddress)
	var v api.TrackingView
	if on {
		v, err = client.Start(ctx)
	} else {
		v, err = client.Stop(ctx)
	}
	if err != nil {
		return err
	}

	if v.Tracking {
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("tracking started"))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("tracking stopped"))
	}
	return nil
}
