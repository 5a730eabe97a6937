package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/memscope/internal/orchestrator"
	"github.com/fyrsmithlabs/memscope/internal/scope"
)

var (
	chatEntity  string
	chatProcess string
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatEntity, "entity", "", "entity id (default memory.entity_id, demo-entity)")
	chatCmd.Flags().StringVar(&chatProcess, "process", "", "process id (default memory.process_id, demo-cli)")
}

// chatCmd runs an interactive memory-backed conversation
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat with memory",
	Long: `Start an interactive chat. Every line you type is one turn; facts are
remembered for the configured entity and recalled in later sessions.

An empty line, "exit", "quit" or Ctrl-C ends the session. Pending memories
are always written before the program exits.

Examples:
  # Chat as the default entity
  memscope chat

  # Chat with Claude as a specific entity
  memscope chat --backend anthropic --entity alice`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	opts := orchestrator.ConversationOptions{
		Backend:   backend,
		Model:     model,
		EntityID:  firstNonEmpty(chatEntity, a.Config.Memory.EntityID),
		ProcessID: firstNonEmpty(chatProcess, a.Config.Memory.ProcessID),
	}
	conv, err := a.Orchestrator.OpenConversation(ctx, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bannerStyle.Render("memscope interactive chat"))
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("entity_id=%s process_id=%s backend=%s model=%s",
		opts.EntityID, opts.ProcessID, conv.Backend(), conv.Model())))
	fmt.Fprintln(out, dimStyle.Render("Type a message and press Enter. Type 'exit' or an empty line to quit."))
	fmt.Fprintln(out)

	return chatLoop(ctx, conv, cmd.InOrStdin(), out)
}

// conversation is the part of *orchestrator.Conversation the loop uses.
type conversation interface {
	Turn(ctx context.Context, text string) (string, error)
	Close(ctx context.Context) error
}

// chatLoop reads lines from in until an empty line, exit, quit, EOF or ctx
// cancellation. The conversation is always closed, which runs the
// augmentation barrier, before "Goodbye!" is printed.
func chatLoop(ctx context.Context, conv conversation, in io.Reader, out io.Writer) error {
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-readCtx.Done():
				return
			}
		}
	}()

	defer func() {
		// The barrier must outlive Ctrl-C.
		if err := conv.Close(context.WithoutCancel(ctx)); err != nil {
			if scope.IsTimeoutWarning(err) {
				fmt.Fprintln(out, warningStyle.Render("Warning: "+err.Error()))
			} else {
				fmt.Fprintln(out, errorStyle.Render("Error saving memories: "+err.Error()))
			}
		}
		fmt.Fprintln(out, "Goodbye!")
	}()

	for {
		fmt.Fprint(out, userStyle.Render("You:")+" ")

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(out)
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}

		reply, err := conv.Turn(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(out)
				return nil
			}
			fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
			fmt.Fprintln(out)
			continue
		}
		fmt.Fprintf(out, "%s %s\n\n", aiStyle.Render("AI:"), reply)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
