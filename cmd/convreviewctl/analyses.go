package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newAnalyzeCommand() *cobra.Command {
	var (
		all      bool
		daysBack int
	)
	cmd := &cobra.Command{
		Use:   "analyze [lead-id...]",
		Short: "Score leads now",
		Example: `  convreviewctl analyze lead-123 lead-456
  convreviewctl analyze --all --days-back=7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{}
			switch {
			case all && len(args) > 0:
				return fmt.Errorf("pass lead IDs or --all, not both")
			case all:
				body["mode"] = "all_unanalyzed"
				if daysBack > 0 {
					body["daysBack"] = daysBack
				}
			case len(args) > 0:
				body["leadIds"] = args
			default:
				return fmt.Errorf("pass lead IDs or --all")
			}
			return runPost(cmd, "/api/v1/analyze", body)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Analyse every lead without an analysis")
	cmd.Flags().IntVar(&daysBack, "days-back", 0, "With --all, only leads updated in this many days")
	return cmd
}

func newBaselineCommand() *cobra.Command {
	var daysBack int
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Analyse recent leads that have no analysis yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{}
			if daysBack > 0 {
				body["daysBack"] = daysBack
			}
			return runPost(cmd, "/api/v1/baseline", body)
		},
	}
	cmd.Flags().IntVar(&daysBack, "days-back", 0, "Look-back window in days (server default when unset)")
	return cmd
}

// --- Analysis commands ---

func newAnalysesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "analyses",
		Aliases: []string{"analysis"},
		Short:   "List and review analyses",
	}
	cmd.AddCommand(newAnalysesListCommand())
	cmd.AddCommand(newAnalysesGetCommand())
	cmd.AddCommand(newAnalysesAgreeCommand())
	cmd.AddCommand(newAnalysesDismissCommand())
	cmd.AddCommand(newAnalysesEventCommand())
	return cmd
}

func newAnalysesListCommand() *cobra.Command {
	var (
		status   string
		priority string
		minScore int
		maxScore int
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analyses, newest first",
		Example: `  convreviewctl analyses list --status=pending_review
  convreviewctl analyses list --max-score=49 --limit=20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if status != "" {
				params.Set("status", status)
			}
			if priority != "" {
				params.Set("priority", priority)
			}
			if cmd.Flags().Changed("min-score") {
				params.Set("minScore", strconv.Itoa(minScore))
			}
			if cmd.Flags().Changed("max-score") {
				params.Set("maxScore", strconv.Itoa(maxScore))
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			return runGet(cmd, "/api/v1/analyses", params)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&priority, "priority", "", "Filter by priority")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Minimum quality score")
	cmd.Flags().IntVar(&maxScore, "max-score", 100, "Maximum quality score")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")
	return cmd
}

func newAnalysesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <analysis-id>",
		Short: "Show one analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, "/api/v1/analyses/"+url.PathEscape(args[0]), nil)
		},
	}
}

// versionFlag adds --expected-version and returns a getter that yields nil
// when the flag was not given.
func versionFlag(cmd *cobra.Command) func() *int {
	var v int
	cmd.Flags().IntVar(&v, "expected-version", 0, "Fail if the analysis changed since this version")
	return func() *int {
		if !cmd.Flags().Changed("expected-version") {
			return nil
		}
		return &v
	}
}

func newAnalysesAgreeCommand() *cobra.Command {
	var feedback string
	cmd := &cobra.Command{
		Use:   "agree <analysis-id>",
		Short: "Accept the analysis and extract learnings from its issues",
		Args:  cobra.ExactArgs(1),
	}
	expected := versionFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		body := map[string]interface{}{"feedback": feedback}
		if v := expected(); v != nil {
			body["expectedVersion"] = *v
		}
		return runPost(cmd, "/api/v1/analyses/"+url.PathEscape(args[0])+"/agree", body)
	}
	cmd.Flags().StringVarP(&feedback, "feedback", "f", "", "Reviewer feedback")
	return cmd
}

func newAnalysesDismissCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "dismiss <analysis-id>",
		Short: "Close the analysis without learnings",
		Args:  cobra.ExactArgs(1),
	}
	expected := versionFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		body := map[string]interface{}{"reason": reason}
		if v := expected(); v != nil {
			body["expectedVersion"] = *v
		}
		return runPost(cmd, "/api/v1/analyses/"+url.PathEscape(args[0])+"/dismiss", body)
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the analysis is dismissed")
	return cmd
}

func newAnalysesEventCommand() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:     "event <analysis-id> <start_review|request_info|dismiss>",
		Short:   "Move an analysis through the review lifecycle",
		Args:    cobra.ExactArgs(2),
		Example: `  convreviewctl analyses event 6f1c... request_info --note="need the call recording"`,
	}
	expected := versionFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		body := map[string]interface{}{"event": args[1], "note": note}
		if v := expected(); v != nil {
			body["expectedVersion"] = *v
		}
		return runPost(cmd, "/api/v1/analyses/"+url.PathEscape(args[0])+"/events", body)
	}
	cmd.Flags().StringVar(&note, "note", "", "Note stored as reviewer feedback")
	return cmd
}
