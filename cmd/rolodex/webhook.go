package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fatih/color"
	"github.com/markusylisiurunen/rolodex/internal/telegram"
	"github.com/spf13/cobra"
)

func (c *cli) webhookCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}
	set := &cobra.Command{
		Use:   "set <url>",
		Short: "Point Telegram at the public URL of the serve command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := url.Parse(args[0])
			if err != nil || u.Scheme != "https" || u.Host == "" {
				return fmt.Errorf("invalid webhook url %q, expected an https url", args[0])
			}
			if !strings.HasSuffix(u.Path, telegram.WebhookPath) {
				c.log.Warn("the url does not end with %s, which is where serve listens", telegram.WebhookPath)
			}
			client, err := c.app.Telegram()
			if err != nil {
				return err
			}
			if err := client.SetWebhook(cmd.Context(), u.String(), c.cfg.WebhookSecret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s webhook set to %s\n", color.New(color.FgGreen).Sprint("✓"), u) //nolint:errcheck
			return nil
		},
	}
	info := &cobra.Command{
		Use:   "info",
		Short: "Show the current webhook registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.app.Telegram()
			if err != nil {
				return err
			}
			info, err := client.GetWebhookInfo(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if info.URL == "" {
				fmt.Fprintln(out, "no webhook is set, the bot can be run with poll") //nolint:errcheck
				return nil
			}
			fmt.Fprintf(out, "url: %s\npending updates: %d\nmax connections: %d\n", //nolint:errcheck
				info.URL, info.PendingUpdateCount, info.MaxConnections)
			if info.LastErrorMessage != "" {
				fmt.Fprintf(out, "last error: %s\n", color.New(color.FgRed).Sprint(info.LastErrorMessage)) //nolint:errcheck
			}
			return nil
		},
	}
	var dropPending bool
	remove := &cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook so the bot can be run with poll",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.app.Telegram()
			if err != nil {
				return err
			}
			if err := client.DeleteWebhook(cmd.Context(), dropPending); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s webhook removed\n", color.New(color.FgGreen).Sprint("✓")) //nolint:errcheck
			return nil
		},
	}
	remove.Flags().BoolVar(&dropPending, "drop-pending", false, "also discard updates waiting to be delivered")
	cmd.AddCommand(set, info, remove)
	return cmd
}
