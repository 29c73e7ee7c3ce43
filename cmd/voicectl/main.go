package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MegaGrindStone/voice-web-ui/internal/apiclient"
	"github.com/MegaGrindStone/voice-web-ui/internal/models"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

type rootOptions struct {
	server   string
	logLevel string
}

func (o *rootOptions) logger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevelMap[o.logLevel],
		TimeFormat: time.Kitchen,
	}))
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "voicectl",
		Short:         "Talk to a voice web UI server from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.server, "server", "s", "http://localhost:8080", "Server base URL")
	rootCmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newTalkCommand(opts))
	rootCmd.AddCommand(newHistoryCommand(opts))
	rootCmd.AddCommand(newNewCommand())

	return rootCmd
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Print the stored transcript of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := apiclient.New(opts.server).Records(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conversation history found")
				return nil
			}
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s: %s\n", rec.SequenceIndex, rec.Role, rec.Transcript)
			}
			return nil
		},
	}
}

func newNewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Print a fresh conversation id",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), models.NewConversationID())
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
