package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	v1 "parley/api/v1"
)

const defaultServerURL = "http://localhost:8790"

// NewSessionCmd creates the session command.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage conversation sessions",
		Long:  `List, view, and delete conversation sessions on a running gateway.`,
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionDeleteCmd())

	return cmd
}

func newSessionListCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
		serverURL  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionList(serverURL, limit, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of sessions to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "Parley server URL")

	return cmd
}

func newSessionShowCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionShow(serverURL, args[0])
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "Parley server URL")

	return cmd
}

func newSessionDeleteCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:     "rm <session-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionDelete(serverURL, args[0])
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", defaultServerURL, "Parley server URL")

	return cmd
}

func newAPIClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
}

func runSessionList(serverURL string, limit int, jsonOutput bool) error {
	client := newAPIClient()

	url := fmt.Sprintf("%s/api/v1/sessions?limit=%d", serverURL, limit)
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w\nIs the server running? Start it with: parley serve", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	var list v1.SessionListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(list.Sessions, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(list.Sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
	for _, s := range list.Sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Title, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runSessionShow(serverURL, sessionID string) error {
	client := newAPIClient()

	resp, err := client.Get(fmt.Sprintf("%s/api/v1/sessions/%s", serverURL, sessionID))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	var session v1.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Session: %s\n", session.ID)
	fmt.Printf("Title:   %s\n", session.Title)
	fmt.Printf("Created: %s\n", session.CreatedAt.Local().Format(time.RFC1123))
	if session.Summary != "" {
		fmt.Printf("Summary: %s\n", session.Summary)
	}
	fmt.Println()

	resp, err = client.Get(fmt.Sprintf("%s/api/v1/sessions/%s/messages", serverURL, sessionID))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	var transcript v1.MessageListResponse
	if err := json.NewDecoder(resp.Body).Decode(&transcript); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	for _, msg := range transcript.Messages {
		fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
	}
	return nil
}

func runSessionDelete(serverURL, sessionID string) error {
	client := newAPIClient()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v1/sessions/%s", serverURL, sessionID), nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	fmt.Printf("Deleted session %s\n", sessionID)
	return nil
}
