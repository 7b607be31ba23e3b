package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aibridge/aibridge/pkg/providers"
)

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Inspect and configure backends",
	}
	cmd.AddCommand(
		newProvidersListCmd(),
		newProvidersValidateCmd(),
		newProvidersSetCmd(),
	)
	return cmd
}

func newProvidersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all providers with availability and configured state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			status := a.engine.ConfiguredStatus()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tAVAILABLE\tCONFIGURED\tCAPABILITIES")
			for _, d := range a.registry.List() {
				available := a.resolver.IsAvailable(cmd.Context(), d.ID)
				fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%s\n",
					d.ID, d.Category, available, status[d.ID], capabilitySummary(d.Capabilities()))
			}
			return w.Flush()
		},
	}
}

func capabilitySummary(caps providers.Capabilities) string {
	var parts []string
	if caps.CanListModels {
		parts = append(parts, "models")
	}
	if caps.CanListVoices {
		parts = append(parts, "voices")
	}
	if caps.CanLoadModel {
		parts = append(parts, "install")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func newProvidersValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <provider>",
		Short: "Validate one provider's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.engine.ValidateProvider(cmd.Context(), args[0])
			if result.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: configured\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: not configured\n", args[0])
			for _, reason := range result.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", reason)
			}
			if len(result.Errors) == 0 && result.Reason != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", result.Reason)
			}
			return nil
		},
	}
}

func newProvidersSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> <key>=<value> [...]",
		Short: "Update provider configuration fields",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			providerID := args[0]
			if _, ok := a.registry.Get(providerID); !ok {
				return fmt.Errorf("unknown provider %q", providerID)
			}

			patch := make(map[string]any, len(args)-1)
			for _, pair := range args[1:] {
				key, value, found := strings.Cut(pair, "=")
				if !found || key == "" {
					return fmt.Errorf("expected key=value, got %q", pair)
				}
				patch[key] = value
			}
			a.configs.Set(providerID, patch)

			// Set schedules a debounced pass; wait for it so the printed
			// state reflects the mutation.
			a.engine.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated (configured: %v)\n", providerID, a.engine.IsConfigured(providerID))
			return nil
		},
	}
}
