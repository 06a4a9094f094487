package main

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// --- Learning commands ---

func newLearningsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "learnings",
		Aliases: []string{"learning"},
		Short:   "Inspect and maintain learnings",
	}
	cmd.AddCommand(newLearningsListCommand())
	cmd.AddCommand(newLearningsGetCommand())
	cmd.AddCommand(newLearningsOutcomeCommand())
	cmd.AddCommand(newLearningsDeactivateCommand())
	return cmd
}

func newLearningsListCommand() *cobra.Command {
	var (
		category   string
		activeOnly bool
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List learnings, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if category != "" {
				params.Set("category", category)
			}
			if activeOnly {
				params.Set("active", "true")
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			return runGet(cmd, "/api/v1/learnings", params)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active learnings")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")
	return cmd
}

func newLearningsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <learning-id>",
		Short: "Show one learning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, "/api/v1/learnings/"+url.PathEscape(args[0]), nil)
		},
	}
}

func newLearningsOutcomeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "outcome <learning-id> <correct|incorrect>",
		Short:   "Record whether applying a learning worked",
		Args:    cobra.ExactArgs(2),
		Example: `  convreviewctl learnings outcome 9a2e... correct`,
		RunE: func(cmd *cobra.Command, args []string) error {
			correct, err := parseOutcome(args[1])
			if err != nil {
				return err
			}
			return runPost(cmd, "/api/v1/learnings/"+url.PathEscape(args[0])+"/outcome", map[string]interface{}{"correct": correct})
		},
	}
}

func newLearningsDeactivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <learning-id>",
		Short: "Retire a learning; its history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(cmd, "/api/v1/learnings/"+url.PathEscape(args[0])+"/deactivate", nil)
		},
	}
}

func newSuggestionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "suggestions",
		Short: "Show instruction changes consolidated from active learnings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, "/api/v1/prompt-suggestions", nil)
		},
	}
}

func parseOutcome(s string) (bool, error) {
	switch s {
	case "correct", "right", "yes":
		return true, nil
	case "incorrect", "wrong", "no":
		return false, nil
	}
	return strconv.ParseBool(s)
}
