package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	serverURL string
	apiKey    string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "convreviewctl",
		Short: "convreview CLI - review scored conversations and teach the agent",
		Long: `convreviewctl talks to a convreview server over its HTTP API.
All output is JSON (pipe through jq for filtering).`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", getDefaultServer(), "convreview server URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("CONVREVIEW_API_KEY"), "API key sent as X-API-Key")

	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newBaselineCommand())
	rootCmd.AddCommand(newAnalysesCommand())
	rootCmd.AddCommand(newTeachCommand())
	rootCmd.AddCommand(newLearningsCommand())
	rootCmd.AddCommand(newSuggestionsCommand())
	rootCmd.AddCommand(newEventsCommand())
	rootCmd.AddCommand(newHealthCommand())
	return rootCmd
}

func getDefaultServer() string {
	if server := os.Getenv("CONVREVIEW_SERVER"); server != "" {
		return server
	}
	return "http://localhost:8080"
}

// --- HTTP client ---

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// newClient allows long calls: batch runs score leads one at a time.
func newClient() *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(serverURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Minute},
	}
}

func (c *Client) do(method, path string, params url.Values, data interface{}) ([]byte, error) {
	u := c.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
		body = strings.NewReader(string(jsonData))
	}

	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return respBody, nil
}

func (c *Client) get(path string, params url.Values) ([]byte, error) {
	return c.do(http.MethodGet, path, params, nil)
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	return c.do(http.MethodPost, path, nil, data)
}

// outputJSON pretty-prints a response body; anything that is not JSON is printed raw.
func outputJSON(w io.Writer, data []byte) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		fmt.Fprintln(w, string(data))
		return
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// runGet is the RunE body shared by the read-only commands.
func runGet(cmd *cobra.Command, path string, params url.Values) error {
	data, err := newClient().get(path, params)
	if err != nil {
		return err
	}
	outputJSON(cmd.OutOrStdout(), data)
	return nil
}

func runPost(cmd *cobra.Command, path string, body interface{}) error {
	data, err := newClient().post(path, body)
	if err != nil {
		return err
	}
	outputJSON(cmd.OutOrStdout(), data)
	return nil
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server and dependency health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, "/api/v1/health", nil)
		},
	}
}
