package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talkcents/talkcents/internal/api"
	"github.com/talkcents/talkcents/internal/model"
)

func newCaptureCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Turn voice memos into transactions",
	}
	cmd.AddCommand(newCaptureAudioCommand(a), newTranscribeCommand(a))
	return cmd
}

func newCaptureAudioCommand(a *app) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "audio <file.m4a>",
		Short: "Extract transactions from a voice memo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raws, err := a.client.AudioToExpenditure(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			txs := a.norm.NormalizeAll(raws, "")
			out := cmd.OutOrStdout()
			if len(txs) == 0 {
				fmt.Fprintln(out, "No transactions recognized.")
				return nil
			}
			if !save {
				fmt.Fprintln(out, "Recognized (not saved, rerun with --save):")
				return printTransactions(out, txs)
			}

			drafts := make([]model.Draft, 0, len(txs))
			for _, tx := range txs {
				if err := a.ensureCategory(tx.Category.Name, ""); err != nil {
					return err
				}
				d := model.DraftOf(tx)
				d.LocalID = ""
				drafts = append(drafts, d)
			}
			created, err := a.store.ImportDrafts(cmd.Context(), drafts)
			if err != nil {
				return err
			}
			a.recordImported(created, filepath.Base(args[0]))
			fmt.Fprintf(out, "Saved %d transactions:\n", len(created))
			return printTransactions(out, created)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "create the recognized transactions")
	return cmd
}

func newTranscribeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <file.m4a>",
		Short: "Print the transcription of a voice memo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.client.Transcribe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

// replyKeys are tried in order to find the assistant's text in a chat
// response.
var replyKeys = []string{"reply", "response", "message", "content"}

func newChatCommand(a *app) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Describe spending in plain words",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := loadSession(session)
			if err != nil {
				return err
			}
			history = append(history, api.ChatMessage{Role: api.RoleUser, Content: strings.Join(args, " ")})

			resp, err := a.client.Chat(cmd.Context(), history)
			if err != nil {
				return err
			}

			reply := ""
			for _, k := range replyKeys {
				if s, ok := resp[k].(string); ok {
					reply = s
					break
				}
			}
			if reply == "" {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)

			history = append(history, api.ChatMessage{Role: api.RoleAssistant, Content: reply})
			return saveSession(session, history)
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "JSON file that keeps the conversation between runs")
	return cmd
}

func loadSession(path string) ([]api.ChatMessage, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chat session: %w", err)
	}
	var history []api.ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parsing chat session %s: %w", path, err)
	}
	return history, nil
}

func saveSession(path string, history []api.ChatMessage) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding chat session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing chat session: %w", err)
	}
	return nil
}
