package main

import (
	"fmt"
	"io"
	"os"

	"github.com/markusylisiurunen/rolodex/internal/app"
	"github.com/markusylisiurunen/rolodex/internal/config"
	"github.com/markusylisiurunen/rolodex/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	envFiles []string
	cfg      config.Config
	app      *app.App
	log      logger.Logger
	closers  []io.Closer
}

func newRootCommand() *cobra.Command {
	c := &cli{log: logger.NoOp()}
	root := &cobra.Command{
		Use:   "rolodex",
		Short: "Conversational assistant over a contacts spreadsheet",
		Long: `rolodex answers questions about a contacts spreadsheet and updates it on request.

It talks to people over Telegram (long polling or a webhook), or locally through a terminal
chat, and keeps every contact as one row of a Google Sheet or an .xlsx workbook.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) { c.close() },
	}
	root.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	root.AddCommand(
		c.pollCommand(),
		c.serveCommand(),
		c.chatCommand(),
		c.askCommand(),
		c.sheetCommand(),
		c.webhookCommand(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(c.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	c.cfg = cfg
	// the terminal chat owns the screen, so it only ever logs to a file
	log, err := c.newLogger(cmd.ErrOrStderr(), cmd.Name() != "chat")
	if err != nil {
		return err
	}
	c.log = log
	c.app, err = app.New(cfg, app.WithLogger(log))
	return err
}

func (c *cli) newLogger(stderr io.Writer, console bool) (logger.Logger, error) {
	var log logger.Logger
	switch {
	case c.cfg.LogFile != "":
		f, err := os.OpenFile(c.cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		c.closers = append(c.closers, f)
		log = logger.New(f)
	case console:
		log = logger.NewConsole(stderr)
	default:
		return logger.NoOp(), nil
	}
	log.SetEnabled(true)
	log.SetLevel(c.cfg.LogLevel)
	return log, nil
}

func (c *cli) close() {
	for _, closer := range c.closers {
		closer.Close() //nolint:errcheck
	}
	c.closers = nil
}
