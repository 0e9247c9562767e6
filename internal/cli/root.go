package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/scibot/internal/config"
	"github.com/example/scibot/internal/database"
	"github.com/example/scibot/internal/review"
)

// Version is reported by the health endpoint.
var Version = "dev"

// app carries what every subcommand needs once configuration is loaded
type app struct {
	cfg      config.Config
	logger   *log.Logger
	logLevel string
}

// NewRootCommand builds the scibot command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "scibot",
		Short:         "Concept retention tracking and review scheduling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		newServeCommand(a),
		newLearnerCommand(a),
		newReviewCommand(a),
		newImportCommand(a),
		newExportCommand(a),
		newRemindCommand(a),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) init(logOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	a.logger = log.NewWithOptions(logOut, log.Options{
		ReportTimestamp: true,
		Prefix:          "scibot",
	})
	a.logger.SetLevel(lvl)
	return nil
}

func (a *app) openService() (*database.DB, *review.Service, error) {
	db, err := database.Open(a.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("database opened", "type", a.cfg.Database.Type)
	return db, review.NewService(db, review.WithLogger(a.logger)), nil
}

func parseLearner(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --learner %q: %w", raw, err)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
