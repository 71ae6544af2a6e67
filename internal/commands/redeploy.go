package commands

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ubc-cic/expertise-dashboard/internal/redeploy"
	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// NewRedeployCmd creates the redeploy command.
func NewRedeployCmd() *cobra.Command {
	var hook types.Webhook
	cmd := &cobra.Command{
		Use:   "redeploy",
		Short: "Fire a front-end deployment webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := redeploy.New(redeploy.WithLogger(newLogger(cmd, os.Stderr)))
			res, err := client.Trigger(cmd.Context(), types.RedeployRequest{Webhook: hook})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(res.StatusCode) == 3 && res.StatusCode[0] == '2' {
				_, err = color.New(color.FgGreen).Fprintf(w, "Webhook %s: %s\n", res.ID, res.StatusCode)
			} else {
				_, err = color.New(color.FgRed).Fprintf(w, "Webhook %s: %s\n", res.ID, res.StatusCode)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&hook.WebhookURL, "url", "", "webhook URL")
	cmd.Flags().StringVar(&hook.WebhookID, "id", "", "webhook id")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
