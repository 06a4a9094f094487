package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultStateFile = ".convreview-dialogue.json"

// dialogueState is the client-held teaching dialogue between calls.
type dialogueState struct {
	AnalysisID      string            `json:"analysisId"`
	IssueIndex      int               `json:"issueIndex"`
	DialogueHistory []json.RawMessage `json:"dialogueHistory"`
}

type teachResponse struct {
	AgentMessage        string            `json:"agentMessage"`
	DialogueHistory     []json.RawMessage `json:"dialogueHistory"`
	LearningID          string            `json:"learningId"`
	ConfirmationMessage string            `json:"confirmationMessage"`
}

func loadState(path string) (*dialogueState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no dialogue in progress (%s not found); run 'teach start' first", path)
	}
	if err != nil {
		return nil, err
	}
	var st dialogueState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("corrupt dialogue state %s: %w", path, err)
	}
	return &st, nil
}

func saveState(path string, st *dialogueState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func newTeachCommand() *cobra.Command {
	var stateFile string
	cmd := &cobra.Command{
		Use:   "teach",
		Short: "Teach the agent through a dialogue about one issue",
		Long: `The dialogue is kept in a local state file between calls. Start it on an
issue, continue as often as needed, then save to turn it into a learning.`,
		Example: `  convreviewctl teach start 6f1c... --issue=0 --message="The quote was accurate"
  convreviewctl teach continue --message="They had asked for a ballpark"
  convreviewctl teach save --message="Exactly"`,
	}
	cmd.PersistentFlags().StringVar(&stateFile, "state", defaultStateFile, "Dialogue state file")

	cmd.AddCommand(newTeachStartCommand(&stateFile))
	cmd.AddCommand(newTeachContinueCommand(&stateFile))
	cmd.AddCommand(newTeachSaveCommand(&stateFile))
	return cmd
}

func newTeachStartCommand(stateFile *string) *cobra.Command {
	var (
		issue   int
		message string
	)
	cmd := &cobra.Command{
		Use:   "start <analysis-id>",
		Short: "Open a dialogue on one issue of an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := &dialogueState{AnalysisID: args[0], IssueIndex: issue}
			return teachTurn(cmd, *stateFile, st, "start_teaching", message)
		},
	}
	cmd.Flags().IntVar(&issue, "issue", 0, "0-based issue index")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Your objection to the issue (required)")
	cmd.MarkFlagRequired("message")
	return cmd
}

func newTeachContinueCommand(stateFile *string) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "continue",
		Short: "Answer the agent's last question",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadState(*stateFile)
			if err != nil {
				return err
			}
			return teachTurn(cmd, *stateFile, st, "continue_dialogue", message)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Your reply (required)")
	cmd.MarkFlagRequired("message")
	return cmd
}

func newTeachSaveCommand(stateFile *string) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Turn the dialogue into a learning and close the analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadState(*stateFile)
			if err != nil {
				return err
			}
			data, err := newClient().post("/api/v1/teaching-dialogue", teachBody(st, "save_learning", message))
			if err != nil {
				return err
			}
			if err := os.Remove(*stateFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			outputJSON(cmd.OutOrStdout(), data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Final remark added to the dialogue")
	return cmd
}

func teachBody(st *dialogueState, action, message string) map[string]interface{} {
	history := st.DialogueHistory
	if history == nil {
		history = []json.RawMessage{}
	}
	return map[string]interface{}{
		"analysisId":      st.AnalysisID,
		"issueIndex":      st.IssueIndex,
		"action":          action,
		"humanMessage":    strings.TrimSpace(message),
		"dialogueHistory": history,
	}
}

// teachTurn sends one conversational turn and stores the returned history.
func teachTurn(cmd *cobra.Command, stateFile string, st *dialogueState, action, message string) error {
	data, err := newClient().post("/api/v1/teaching-dialogue", teachBody(st, action, message))
	if err != nil {
		return err
	}
	var resp teachResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("unexpected response: %w", err)
	}
	st.DialogueHistory = resp.DialogueHistory
	if err := saveState(stateFile, st); err != nil {
		return fmt.Errorf("failed to save dialogue state: %w", err)
	}
	outputJSON(cmd.OutOrStdout(), data)
	return nil
}
