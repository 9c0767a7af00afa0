package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/catuchi/LawMadeSimple-sub001/internal/config"
	logpkg "github.com/catuchi/LawMadeSimple-sub001/internal/logger"
	"github.com/catuchi/LawMadeSimple-sub001/internal/version"
)

// rootOptions are resolved once in PersistentPreRunE and shared by subcommands.
type rootOptions struct {
	env     string
	envFile string
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "lawsearch",
		Short:         "Hybrid keyword and semantic search over laws, sections and scenarios",
		Version:       version.String(),
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.env, "env", "",
		"config environment: local, dev, prod (default from $ENV, else local)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before config expansion")

	cmd.AddCommand(newServeCmd(opts), newSearchCmd(opts))
	return cmd
}

func (o *rootOptions) load() error {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", o.envFile, err)
	}

	if o.env == "" {
		o.env = config.GetEnv()
	}

	cfg, err := config.Load(o.env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.cfg = cfg

	logger, err := logpkg.NewLogger(o.env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	o.logger = logger
	return nil
}
