package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/memscope/internal/orchestrator"
)

const (
	quickstartFact     = "My favorite color is blue."
	quickstartQuestion = "What's my favorite color?"
)

var (
	quickstartEntity  string
	quickstartProcess string
)

func init() {
	rootCmd.AddCommand(quickstartCmd)
	quickstartCmd.Flags().StringVar(&quickstartEntity, "entity", "123456", "entity id for the demo")
	quickstartCmd.Flags().StringVar(&quickstartProcess, "process", "test-ai-agent", "process id for the demo")
}

// quickstartCmd demonstrates recall across two independent sessions
var quickstartCmd = &cobra.Command{
	Use:   "quickstart",
	Short: "Store a fact, then recall it from a fresh session",
	Long: `Run the two-step memory demo:

  1. Tell the model "My favorite color is blue." and wait for the memory
     to be written.
  2. Open a fresh session for the same entity and ask
     "What's my favorite color?".

The second reply can only know the answer through recalled memory.

Examples:
  memscope quickstart
  memscope quickstart --backend openai`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		return runQuickstart(cmd.Context(), a.Orchestrator, orchestrator.ConversationOptions{
			Backend:   firstNonEmpty(backend, "gemini"),
			Model:     model,
			EntityID:  quickstartEntity,
			ProcessID: quickstartProcess,
		}, cmd.OutOrStdout())
	},
}

// runQuickstart stores the fact in one conversation, waits for its
// barrier, and asks the question in a second one.
func runQuickstart(ctx context.Context, orch *orchestrator.Orchestrator, opts orchestrator.ConversationOptions, out io.Writer) error {
	ask := func(step, prompt string) error {
		conv, err := orch.OpenConversation(ctx, opts)
		if err != nil {
			return err
		}
		reply, err := conv.Turn(ctx, prompt)
		closeErr := conv.Close(ctx)
		if err != nil {
			return err
		}
		if closeErr != nil {
			fmt.Fprintln(out, warningStyle.Render("Warning: "+closeErr.Error()))
		}

		fmt.Fprintln(out, sectionStyle.Render(step))
		fmt.Fprintf(out, "%s %s\n", userStyle.Render("You:"), prompt)
		fmt.Fprintf(out, "%s %s\n\n", aiStyle.Render("AI:"), reply)
		return nil
	}

	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("entity_id=%s process_id=%s", opts.EntityID, opts.ProcessID)))
	if err := ask("Step 1: store a fact", quickstartFact); err != nil {
		return err
	}
	return ask("Step 2: recall it from a fresh session", quickstartQuestion)
}
