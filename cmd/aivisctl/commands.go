package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"aivisibility/internal/client"
	"aivisibility/internal/config"
	"aivisibility/internal/engine"
	"aivisibility/internal/models"
)

var (
	runLocation  string
	runResume    bool
	runQuiet     bool
	resultsLimit int
	resultsRun   bool
	modelsPath   string
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run DOMAIN_ID",
		Short: "Start a run and follow its events",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&runLocation, "location", "", "user location passed to the models")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "skip phrase/model pairs that already have results")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "only print the final statistics")
	rootCmd.AddCommand(runCmd)

	// results command
	resultsCmd := &cobra.Command{
		Use:   "results ID",
		Short: "List the latest result per phrase and model, or all results of one run",
		Args:  cobra.ExactArgs(1),
		RunE:  runResults,
	}
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 100, "maximum number of results")
	resultsCmd.Flags().BoolVar(&resultsRun, "run", false, "treat ID as a run ID")
	rootCmd.AddCommand(resultsCmd)

	// stats command
	statsCmd := &cobra.Command{
		Use:   "stats DOMAIN_ID",
		Short: "Show aggregate statistics for a domain",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}
	rootCmd.AddCommand(statsCmd)

	// models command
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Show the model rosters and pricing",
		RunE:  runModels,
	}
	modelsCmd.Flags().StringVar(&modelsPath, "file", "models.yaml", "models file path")
	rootCmd.AddCommand(modelsCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var final *engine.AggregateStats
	errCount := 0

	runID, err := client.New(serverURL).StartRun(ctx, args[0], client.RunOptions{
		Location: runLocation,
		Resume:   runResume,
	}, func(ev client.Event) error {
		switch ev.Type {
		case engine.EventStats:
			final = ev.Stats
		case engine.EventError:
			if !ev.Fatal {
				errCount++
			}
		}
		if !runQuiet {
			printEvent(out, ev)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if final != nil {
		fmt.Fprintln(out)
		printStats(out, final)
	}
	if errCount > 0 {
		fmt.Fprintf(out, "\n%d task errors during run\n", errCount)
	}
	if runID != "" {
		fmt.Fprintf(out, "Run ID: %s\n", runID)
	}
	return nil
}

func printEvent(w io.Writer, ev client.Event) {
	switch ev.Type {
	case engine.EventProgress:
		fmt.Fprintf(w, "... %s\n", ev.Message)
	case engine.EventResult:
		r := ev.Result
		presence, overall := "-", "-"
		if r.Scores != nil {
			presence = "no"
			if r.Scores.Presence == 1 {
				presence = "yes"
			}
			overall = fmt.Sprintf("%.1f", r.Scores.Overall)
		}
		fmt.Fprintf(w, "[%3d%%] %-20s %-8s present=%-3s overall=%s  %s\n",
			r.Progress, r.Model, r.Keyword, presence, overall, truncate(r.Phrase, 50))
	case engine.EventError:
		fmt.Fprintf(w, "!!! %s\n", ev.Message)
	case engine.EventComplete:
		fmt.Fprintln(w, "Run complete")
	}
}

func runResults(cmd *cobra.Command, args []string) error {
	c := client.New(serverURL)
	var (
		results []models.QueryResult
		err     error
	)
	if resultsRun {
		results, err = c.RunResults(cmd.Context(), args[0])
	} else {
		results, err = c.Results(cmd.Context(), args[0], resultsLimit)
	}
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tKEYWORD\tPRESENT\tOVERALL\tSCORED BY\tPHRASE")
	for _, r := range results {
		present, overall := "-", "-"
		if r.Scores != nil {
			present = fmt.Sprintf("%d", r.Scores.Presence)
			overall = fmt.Sprintf("%.1f", r.Scores.Overall)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Model, r.Keyword, present, overall, r.ScoredBy, truncate(r.Phrase, 60))
	}
	return w.Flush()
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := client.New(serverURL).Stats(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), stats)
	return nil
}

func printStats(out io.Writer, stats *engine.AggregateStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tCOUNT\tPRESENCE\tRELEVANCE\tACCURACY\tSENTIMENT\tOVERALL")
	row := func(name string, s engine.ModelStats) {
		fmt.Fprintf(w, "%s\t%d\t%d%%\t%.2f\t%.2f\t%.2f\t%.2f\n",
			name, s.Count, s.PresenceRate, s.AvgRelevance, s.AvgAccuracy, s.AvgSentiment, s.AvgOverall)
	}
	for _, name := range stats.Models() {
		row(name, stats.ByModel[name])
	}
	row("(all)", stats.Overall)
	w.Flush()
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadModels(modelsPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Full roster:     %s\n", strings.Join(cfg.Rosters.Full, ", "))
	fmt.Fprintf(out, "Fallback roster: %s\n\n", strings.Join(cfg.Rosters.Fallback, ", "))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tINPUT/1K\tOUTPUT/1K")
	for _, m := range cfg.Models {
		fmt.Fprintf(w, "%s\t$%.4f\t$%.4f\n", m.Name, m.InputPer1K, m.OutputPer1K)
	}
	return w.Flush()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
