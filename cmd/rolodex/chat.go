package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/markusylisiurunen/rolodex/internal/agent"
	"github.com/markusylisiurunen/rolodex/internal/config"
	"github.com/markusylisiurunen/rolodex/internal/tui"
	"github.com/spf13/cobra"
)

func (c *cli) chatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cfg.Require(config.PartLLM, config.PartSheet); err != nil {
				return err
			}
			ag, err := c.app.Agent(cmd.Context())
			if err != nil {
				return err
			}
			model := tui.Initial(ag, c.app.Catalog(), tui.WithModelName(c.cfg.LLMModel), tui.WithLogger(c.log))
			program := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("error running program: %w", err)
			}
			return nil
		},
	}
}

func (c *cli) askCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Send one request to the assistant and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.Require(config.PartLLM, config.PartSheet); err != nil {
				return err
			}
			ag, err := c.app.Agent(cmd.Context())
			if err != nil {
				return err
			}
			res := ag.Run(cmd.Context(), "cli", strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), res.Answer) //nolint:errcheck
			if verbose {
				state := color.New(color.FgGreen).Sprint(res.State)
				if res.State == agent.StateFailed {
					state = color.New(color.FgRed).Sprintf("%s (%s)", res.State, res.Reason)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s, rounds: %d, tool calls: %d, tokens: %d\n", //nolint:errcheck
					state, res.Rounds, res.ToolCalls, res.Usage.PromptTokens+res.Usage.CompletionTokens)
			}
			if res.State == agent.StateFailed {
				return fmt.Errorf("request failed: %s", res.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the run outcome to stderr")
	return cmd
}
