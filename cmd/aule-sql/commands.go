package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/manthysbr/aulesql/internal/adapters/sqldb"
	"github.com/manthysbr/aulesql/internal/core/domain"
	"github.com/manthysbr/aulesql/internal/core/services"
)

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newAskCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			showSteps, _ := cmd.Flags().GetBool("steps")

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, newLogger(flags.verbose), flags)
			if err != nil {
				return err
			}
			defer a.close()

			result := a.agent.Run(ctx, strings.Join(args, " "))
			if asJSON {
				return printJSON(cmd, result)
			}
			printResult(cmd, result, showSteps)
			if !result.IsAnswer() {
				return fmt.Errorf("run %s ended %s: %s", result.RunID, result.Outcome, result.Error)
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "print the full run result as JSON")
	cmd.Flags().Bool("steps", false, "print the transcript before the answer")
	return cmd
}

func newBatchCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Answer every question in a file, one per line",
		Long:  "Reads questions from a file (or - for stdin), one per line. Blank lines and lines starting with # are skipped. Results are printed in input order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parallel, _ := cmd.Flags().GetInt("parallel")
			asJSON, _ := cmd.Flags().GetBool("json")

			questions, err := readQuestions(args[0])
			if err != nil {
				return err
			}
			if len(questions) == 0 {
				return fmt.Errorf("no questions in %s", args[0])
			}

			ctx, cancel := signalContext()
			defer cancel()

			logger := newLogger(flags.verbose)
			a, err := newApp(ctx, logger, flags)
			if err != nil {
				return err
			}
			defer a.close()

			results := services.NewBatchRunner(logger, a.agent).RunAll(ctx, questions, parallel)
			if asJSON {
				return printJSON(cmd, results)
			}

			answered := 0
			for i, r := range results {
				printf(cmd, "[%d] %s\n", i+1, r.Question)
				printResult(cmd, r, false)
				printf(cmd, "\n")
				if r.IsAnswer() {
					answered++
				}
			}
			printf(cmd, "%d of %d questions answered\n", answered, len(results))
			return nil
		},
	}

	cmd.Flags().IntP("parallel", "p", 2, "questions answered at the same time")
	cmd.Flags().Bool("json", false, "print the run results as JSON")
	return cmd
}

func newExploreCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "explore",
		Short: "Show tables, row counts and sample rows without asking the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			logger := newLogger(flags.verbose)
			a, err := newApp(ctx, logger, flags)
			if err != nil {
				return err
			}
			defer a.close()

			tables, err := services.NewSchemaExplorer(logger, a.store).Explore(ctx)
			if err != nil {
				return fmt.Errorf("explore schema: %w", err)
			}
			printf(cmd, "%s", services.FormatOverview(tables))
			return nil
		},
	}
}

func newSeedCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the sample employees table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, newLogger(flags.verbose), flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.SeedEmployees(ctx, sqldb.SampleEmployees); err != nil {
				return fmt.Errorf("seed employees: %w", err)
			}

			path := a.cfg.Store.Path
			if abs, err := filepath.Abs(path); err == nil && path != ":memory:" {
				path = abs
			}
			printf(cmd, "Seeded %d employees into %s (%s)\n", len(sqldb.SampleEmployees), path, a.store.Driver())
			return nil
		},
	}
}

func newHistoryCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or prune past runs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, newLogger(flags.verbose), flags)
			if err != nil {
				return err
			}
			defer a.close()

			runs, err := a.history.ListTraces(ctx, limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			for _, r := range runs {
				printf(cmd, "%s  %s  %-9s %6dms  %s\n",
					r.StartTime.Format(time.DateTime), r.ID, r.Outcome, r.DurationMs, r.Question)
			}
			return nil
		},
	}
	list.Flags().Int("limit", 20, "number of runs to show")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the transcript of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, newLogger(flags.verbose), flags)
			if err != nil {
				return err
			}
			defer a.close()

			trace, err := a.history.GetTrace(ctx, domain.TraceID(args[0]))
			if err != nil {
				return err
			}
			printf(cmd, "Question: %s\n\n", trace.Question)
			printSteps(cmd, trace.Steps)
			printf(cmd, "\nOutcome: %s\n", trace.Outcome)
			return nil
		},
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, newLogger(flags.verbose), flags)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.history.PruneTraces(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return fmt.Errorf("prune runs: %w", err)
			}
			printf(cmd, "Pruned %d runs\n", n)
			return nil
		},
	}
	prune.Flags().Duration("older-than", 30*24*time.Hour, "age of the oldest run to keep")

	cmd.AddCommand(list, show, prune)
	return cmd
}

// readQuestions reads one question per line, skipping blanks and # comments
func readQuestions(path string) ([]string, error) {
	f := os.Stdin
	if path != "-" {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open questions: %w", err)
		}
		defer f.Close()
	}

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return questions, nil
}

func printResult(cmd *cobra.Command, r domain.RunResult, showSteps bool) {
	if showSteps || !r.IsAnswer() {
		printSteps(cmd, r.Transcript)
	}
	switch r.Outcome {
	case domain.OutcomeAnswer:
		printf(cmd, "%s\n", r.Answer)
	case domain.OutcomeExhausted:
		printf(cmd, "No answer: %s\n", r.Error)
	default:
		printf(cmd, "Failed: %s\n", r.Error)
	}
}

func printSteps(cmd *cobra.Command, steps []domain.Step) {
	printf(cmd, "%s", services.RenderTranscript(steps))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
