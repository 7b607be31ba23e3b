package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aibridge/aibridge/pkg/providers"
)

func newSpeakCmd() *cobra.Command {
	var provider, voiceID, out string
	var speed float64

	cmd := &cobra.Command{
		Use:   "speak <text...>",
		Short: "Synthesize speech to an audio file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			req := providers.Request{
				Provider: provider,
				Input:    strings.Join(args, " "),
				Voice:    voiceID,
			}
			if speed != 0 {
				req.Overrides = map[string]any{
					"voiceSettings": map[string]any{"speed": speed},
				}
			}

			result, err := a.facade.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, result.Audio, 0o644); err != nil {
				return fmt.Errorf("writing audio file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(result.Audio), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "app-local-kokoro", "Speech provider id")
	cmd.Flags().StringVar(&voiceID, "voice", "", "Voice id (provider default when empty)")
	cmd.Flags().StringVarP(&out, "out", "o", "speech.mp3", "Output audio path")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Speaking speed override")

	cmd.AddCommand(newVoicesCmd())
	return cmd
}

func newVoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voices <provider>",
		Short: "List a speech provider's voices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			voices, err := a.facade.Voices(cmd.Context(), args[0])
			if errors.Is(err, providers.ErrCapabilityUnsupported) {
				return fmt.Errorf("%s does not list voices", args[0])
			}
			if err != nil {
				return err
			}
			for _, v := range voices {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", v.ID, v.Name)
			}
			return nil
		},
	}
}

func newTranscribeCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file to text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("audio file: %w", err)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.facade.Generate(cmd.Context(), providers.Request{
				Provider: provider,
				Input:    args[0],
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "app-local-whisper", "Transcription provider id")
	return cmd
}
