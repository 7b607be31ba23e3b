package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aibridge/aibridge/pkg/providers"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List and install provider models",
	}
	cmd.AddCommand(newModelsListCmd(), newModelsInstallCmd())
	return cmd
}

func newModelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <provider>",
		Short: "List the models a provider can serve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			models, err := a.facade.Models(cmd.Context(), args[0])
			if errors.Is(err, providers.ErrCapabilityUnsupported) {
				return fmt.Errorf("%s does not list models", args[0])
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSIZE\tINSTALLED")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", m.ID, m.Name, formatSize(m.Size), m.Installed)
			}
			return w.Flush()
		},
	}
}

func formatSize(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	const mb = 1 << 20
	if bytes < mb {
		return fmt.Sprintf("%d KB", bytes>>10)
	}
	return fmt.Sprintf("%d MB", bytes/mb)
}

func newModelsInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <provider> <model>",
		Short: "Download and load a model in the local runtime",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			providerID, modelID := args[0], args[1]

			done := make(chan struct{})
			go func() {
				ticker := time.NewTicker(500 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if p, ok := a.tracker.Progress(providerID, modelID); ok {
							fmt.Fprintf(cmd.OutOrStdout(), "\r%s: %3.0f%%", modelID, p.Progress*100)
						}
					}
				}
			}()

			err = a.tracker.Install(cmd.Context(), providerID, modelID)
			close(done)
			fmt.Fprintln(cmd.OutOrStdout())
			if errors.Is(err, providers.ErrCapabilityUnsupported) {
				return fmt.Errorf("%s does not install models", providerID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s installed\n", modelID)
			return nil
		},
	}
}
