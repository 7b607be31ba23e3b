package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aibridge/aibridge/pkg/providers"
)

func newChatCmd() *cobra.Command {
	var provider, model, system string

	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Send a single chat turn to a provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var messages []providers.ChatMessage
			if system != "" {
				messages = append(messages, providers.ChatMessage{Role: "system", Content: system})
			}
			messages = append(messages, providers.ChatMessage{Role: "user", Content: strings.Join(args, " ")})

			result, err := a.facade.Generate(cmd.Context(), providers.Request{
				Provider: provider,
				Model:    model,
				Messages: messages,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			if result.Chat != nil && result.Chat.Usage != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "(%d tokens)\n", result.Chat.Usage.TotalTokens)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "anthropic", "Chat provider id")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model override")
	cmd.Flags().StringVarP(&system, "system", "s", "", "System prompt")
	return cmd
}

func newEmbedCmd() *cobra.Command {
	var provider, model string

	cmd := &cobra.Command{
		Use:   "embed <text...>",
		Short: "Produce an embedding vector for text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.facade.Generate(cmd.Context(), providers.Request{
				Provider: provider,
				Model:    model,
				Input:    strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			if len(result.Embeddings) == 0 {
				return fmt.Errorf("no embedding returned")
			}

			vector := result.Embeddings[0]
			fmt.Fprintf(cmd.OutOrStdout(), "%d dimensions\n", len(vector))
			preview := vector
			if len(preview) > 8 {
				preview = preview[:8]
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v ...\n", preview)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "openai-embeddings", "Embedding provider id")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model override")
	return cmd
}
