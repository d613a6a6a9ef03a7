package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"ragchat/internal/logger"
	"ragchat/internal/server"
	"ragchat/internal/tui"
)

type rootFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "rag",
		Short:         "Answer HR policy questions with retrieval-augmented generation",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/ragchat/config.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "Emit JSON logs")

	root.AddCommand(serveCmd(flags), askCmd(flags), chatCmd(flags), healthCmd(flags))
	return root
}

// setup loads configuration, initialises logging and assembles the pipeline.
func setup(flags *rootFlags, quiet bool) (*app, error) {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Log.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(level)
	logCfg.JSON = cfg.Log.JSON || flags.logJSON
	if quiet && flags.logLevel == "" {
		// Interactive commands keep the terminal for answers.
		logCfg.Level = logger.ErrorLevel
	}
	log := logger.Init(logCfg)
	return newApp(cfg, log)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := setup(flags, false)
			if err != nil {
				return err
			}
			gin.SetMode(gin.ReleaseMode)
			srv := server.New(a.chat, a.health, server.Options{
				Port:          a.cfg.Server.Port,
				CORSOrigin:    a.cfg.Server.CORSOrigin,
				TopicKeywords: a.cfg.Server.TopicKeywords,
				OffTopicReply: a.cfg.Server.OffTopicReply,
				Gatherer:      a.registry,
				Recorder:      a.recorder,
				Logger:        a.log,
			})
			ctx, stop := signalContext()
			defer stop()
			return srv.Run(ctx)
		},
	}
}

func askCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and print the reply and sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags, true)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			ans, err := a.chat.HandleQuery(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Reply)
			if len(ans.Sources) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for _, s := range ans.Sources {
					fmt.Fprintf(out, "  - %s\n", s)
				}
			}
			return nil
		},
	}
}

func chatCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := setup(flags, true)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			m := tui.New(ctx, a.chat)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
}

func healthCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the completion server's liveness endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(flags, true)
			if err != nil {
				return err
			}
			if !a.health.Check(cmd.Context()) {
				return fmt.Errorf("completion server at %s is not ready", a.health.URL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", a.health.URL())
			return nil
		},
	}
}
