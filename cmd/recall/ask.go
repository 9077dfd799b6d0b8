package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recallkit/recall/llm/anthropic"
)

var askModel string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question using retrieved memory and a language model",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askModel, "model", "", "model name (empty uses the adapter default)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Shutdown(cmd.Context())

	completer, err := anthropic.New(anthropic.Config{Model: askModel})
	if err != nil {
		return err
	}

	prompt := question
	if eng.ShouldRetrieve(question) {
		result, err := eng.Retrieve(cmd.Context(), question, 0)
		if err != nil {
			return err
		}
		if result != nil {
			prompt = fmt.Sprintf(
				"Context from the user's local notes and conversation history:\n\n%s\n\nQuestion: %s",
				result.FormattedText, question)
		}
	}

	answer, err := completer.Complete(cmd.Context(), prompt)
	if err != nil {
		return err
	}
	cmd.Println(answer)
	return nil
}
