package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/memscope/internal/identity"
	"github.com/fyrsmithlabs/memscope/internal/orchestrator"
)

var (
	askNoMemory bool
	askSession  string
	askJSON     bool
)

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(compareCmd)

	for _, c := range []*cobra.Command{askCmd, compareCmd} {
		c.Flags().StringVar(&askSession, "session", "", "session id to continue (default: a new session)")
		c.Flags().BoolVar(&askJSON, "json", false, "print the result as JSON")
	}
	askCmd.Flags().BoolVar(&askNoMemory, "no-memory", false, "call the model without memory")
}

// askCmd sends one message
var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send a single message",
	Long: `Send one message and print the reply. With memory enabled (the default)
the turn runs in its own scope and waits for augmentation, exactly like a
web request. Pass --session to continue an earlier session id.

Examples:
  memscope ask "My favorite color is blue."
  memscope ask --session 3f0c... "What's my favorite color?"
  memscope ask --no-memory --backend gemini "Hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		return runAsk(cmd.Context(), a.Orchestrator, orchestrator.Request{
			Text:      strings.Join(args, " "),
			UseMemory: !askNoMemory,
			Backend:   backend,
			Model:     model,
			Carrier:   identity.NewMemoryCarrier(askSession),
		}, cmd.OutOrStdout())
	},
}

// compareCmd runs a message with and without memory side by side
var compareCmd = &cobra.Command{
	Use:   "compare <message>",
	Short: "Compare replies with and without memory",
	Long: `Run the same message twice, concurrently: once through the memory layer
and once against the bare model, and print both replies.

Examples:
  memscope compare --session 3f0c... "What's my favorite color?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		return runCompare(cmd.Context(), a.Orchestrator, identity.NewMemoryCarrier(askSession),
			strings.Join(args, " "), cmd.OutOrStdout())
	},
}

func runAsk(ctx context.Context, orch *orchestrator.Orchestrator, req orchestrator.Request, out io.Writer) error {
	res, err := orch.HandleTurn(ctx, req)
	if err != nil {
		return err
	}
	if askJSON {
		return writeJSON(out, res)
	}

	fmt.Fprintf(out, "%s %s\n", aiStyle.Render("AI:"), res.Text)
	for _, w := range res.Warnings {
		fmt.Fprintln(out, warningStyle.Render("Warning: "+w))
	}
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("session_id=%s backend=%s model=%s memory=%t",
		res.SessionID, res.Backend, res.Model, res.UseMemory)))
	return nil
}

func runCompare(ctx context.Context, orch *orchestrator.Orchestrator, c identity.Carrier, text string, out io.Writer) error {
	cmp := orch.Compare(ctx, c, text, backend, model)
	if f := cmp.WithMemory.Err; f != nil && f.Kind == orchestrator.KindInvalidInput {
		return f
	}
	if askJSON {
		return writeJSON(out, cmp)
	}

	printBranch := func(title string, b orchestrator.Branch) {
		fmt.Fprintln(out, sectionStyle.Render(title))
		if b.Err != nil {
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("Error (%s): %s", b.Err.Kind, b.Err.Message)))
		} else {
			fmt.Fprintf(out, "%s %s\n", aiStyle.Render("AI:"), b.Result.Text)
			for _, w := range b.Result.Warnings {
				fmt.Fprintln(out, warningStyle.Render("Warning: "+w))
			}
		}
		fmt.Fprintln(out)
	}
	printBranch("With memory", cmp.WithMemory)
	printBranch("Without memory", cmp.WithoutMemory)
	fmt.Fprintln(out, dimStyle.Render("session_id="+cmp.SessionID))
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
