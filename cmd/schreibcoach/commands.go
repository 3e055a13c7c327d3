package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mkrenz/schreibcoach/internal/config"
)

// outcome mirrors the server's response envelope.
type outcome struct {
	Success bool `json:"success"`
	Data    *struct {
		ID             string `json:"id"`
		ConversationID string `json:"conversation_id"`
		Content        string `json:"content"`
		Sender         string `json:"sender"`
		Kind           string `json:"kind"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Kind    string `json:"kind"`
	} `json:"error"`
}

func decodeOutcome(resp *http.Response) (*outcome, error) {
	defer resp.Body.Close()
	var out outcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("server returned %d: %w", resp.StatusCode, err)
	}
	if !out.Success {
		if out.Error != nil {
			return nil, fmt.Errorf("%s", out.Error.Message)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return &out, nil
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to the writing coach",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		conversationID, _ := cmd.Flags().GetString("conversation")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/chat", map[string]any{
			"conversation_id": conversationID,
			"content":         message,
		})
		if err != nil {
			return err
		}

		out, err := decodeOutcome(resp)
		if err != nil {
			return err
		}

		fmt.Println(out.Data.Content)
		if conversationID == "" {
			printStatus("Conversation", "%s", out.Data.ConversationID)
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().String("conversation", "", "conversation ID to continue")
}

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Analyze handwriting images or PDF documents",
	Long: `Analyze handwriting images or PDF documents.

Images (JPEG, PNG, WebP) go through OCR before analysis; PDFs are read
directly. Multiple files are analyzed concurrently.

Examples:
  schreibcoach analyze essay.jpg
  schreibcoach analyze draft1.png draft2.png
  schreibcoach analyze --conversation 1b2a aufsatz.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID, _ := cmd.Flags().GetString("conversation")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		results := make([]string, len(args))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(4)
		for i, path := range args {
			g.Go(func() error {
				content, err := analyzeFile(ctx, client, path, conversationID)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				results[i] = content
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, content := range results {
			if len(args) > 1 {
				fmt.Printf("\n%s\n", colorize(colorBold, args[i]))
			}
			fmt.Println(content)
		}
		return nil
	},
}

func analyzeFile(ctx context.Context, client *apiClient, path, conversationID string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}

	endpoint, field := "/v1/analyze", "image"
	mediaType := mediaTypeForFile(path)
	if mediaType == "application/pdf" {
		endpoint, field = "/v1/documents", "document"
	}

	resp, err := client.postFile(ctx, endpoint, field, filepath.Base(path), mediaType, data, conversationID)
	if err != nil {
		return "", err
	}

	out, err := decodeOutcome(resp)
	if err != nil {
		return "", err
	}
	return out.Data.Content, nil
}

func mediaTypeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}

func init() {
	analyzeCmd.Flags().String("conversation", "", "conversation ID to attach the analysis to")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse conversation history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/conversations?limit=%d", limit))
		if err != nil {
			return err
		}

		var conversations []struct {
			ID           string `json:"id"`
			MessageCount int    `json:"message_count"`
			LastActivity string `json:"last_activity"`
		}
		if err := decodeJSON(resp, &conversations); err != nil {
			return err
		}

		if len(conversations) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		for _, c := range conversations {
			fmt.Printf("%s  %s  %d messages\n",
				colorize(colorCyan, shortID(c.ID)),
				c.LastActivity,
				c.MessageCount,
			)
		}
		return nil
	},
}

// shortID truncates generated UUIDs for display. Caller-chosen conversation
// IDs can be arbitrarily short and are shown as-is.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/conversations/"+args[0]+"/messages")
		if err != nil {
			return err
		}

		var messages []struct {
			Sender    string `json:"sender"`
			Kind      string `json:"kind"`
			Content   string `json:"content"`
			Timestamp string `json:"timestamp"`
		}
		if err := decodeJSON(resp, &messages); err != nil {
			return err
		}

		if len(messages) == 0 {
			fmt.Println("No messages found.")
			return nil
		}

		for _, m := range messages {
			label := m.Sender
			if m.Kind != "text" {
				label = fmt.Sprintf("%s (%s)", m.Sender, m.Kind)
			}
			fmt.Printf("\n%s  %s\n%s\n", colorize(colorBold, label), m.Timestamp, m.Content)
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/v1/conversations/"+args[0])
		if err != nil {
			return err
		}
		resp.Body.Close()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		printSuccess("Deleted conversation %s", args[0])
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of conversations to list")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List valid configuration keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, key := range config.ValidKeys() {
			fmt.Println(key)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
}
