package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/MegaGrindStone/english-buddy/internal/chat"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

var serverFlag string

var (
	userStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	buddyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var rootCmd = &cobra.Command{
	Use:   "buddy",
	Short: "Chat with the English Adventure Buddy from the terminal",
	Long: `buddy is a terminal client for a running englishbuddy-server. Every line you type
is sent with the whole conversation, and the reply is printed as it streams in.

Type /1, /2, ... to send one of the suggestions, /quit to leave.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runChat(cmd.Context(), os.Stdout)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&serverFlag, "server", "s", "http://localhost:8080", "Base URL of the chat server")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func chatEndpoint(server string) string {
	return strings.TrimSuffix(server, "/") + "/api/chat"
}

// suggestionIndex parses the "/N" shortcut into a zero based suggestion index.
func suggestionIndex(input string, count int) (int, bool) {
	if !strings.HasPrefix(input, "/") {
		return 0, false
	}
	n, err := strconv.Atoi(input[1:])
	if err != nil || n < 1 || n > count {
		return 0, false
	}
	return n - 1, true
}

func runChat(ctx context.Context, out io.Writer) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	c := chat.NewClient(chatEndpoint(serverFlag),
		chat.WithLogger(logger),
		chat.WithDeltaHandler(func(text string) {
			fmt.Fprint(out, text)
		}),
	)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Fprintln(out, hintStyle.Render("Suggestions:"))
	for i, s := range c.Suggestions() {
		fmt.Fprintln(out, hintStyle.Render(fmt.Sprintf("  /%d  %s", i+1, s)))
	}

	for {
		input, err := line.Prompt("you> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "/quit" {
			return nil
		}
		line.AppendHistory(input)

		if i, ok := suggestionIndex(input, len(c.Suggestions())); ok {
			fmt.Fprintln(out, userStyle.Render("you:"), c.Suggestions()[i])
			fmt.Fprint(out, buddyStyle.Render("buddy:")+" ")
			err = c.Suggest(ctx, i)
		} else {
			fmt.Fprint(out, buddyStyle.Render("buddy:")+" ")
			err = c.Submit(ctx, input)
		}
		fmt.Fprintln(out)

		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(c.StreamError()))
		}
	}
}
