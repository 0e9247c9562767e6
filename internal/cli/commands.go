package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/scibot/internal/bot"
	"github.com/example/scibot/internal/excel"
	"github.com/example/scibot/internal/scheduler"
)

func newLearnerCommand(a *app) *cobra.Command {
	var (
		telegramID int64
		username   string
	)
	cmd := &cobra.Command{
		Use:   "learner",
		Short: "Get or create the learner for a telegram id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, svc, err := a.openService()
			if err != nil {
				return err
			}
			defer db.Close()

			learner, err := svc.EnsureLearner(cmd.Context(), telegramID, username)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), learner)
		},
	}
	cmd.Flags().Int64Var(&telegramID, "telegram-id", 0, "telegram user id")
	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.MarkFlagRequired("telegram-id")
	return cmd
}

func newReviewCommand(a *app) *cobra.Command {
	var (
		learner   string
		conceptID int64
		quality   float64
	)
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Apply one review and print the updated retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseLearner(learner)
			if err != nil {
				return err
			}
			db, svc, err := a.openService()
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := svc.Review(cmd.Context(), id, conceptID, quality)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&learner, "learner", "", "learner id (uuid)")
	cmd.Flags().Int64Var(&conceptID, "concept", 0, "concept id")
	cmd.Flags().Float64Var(&quality, "quality", 0, "recall quality, passing at 0.6 or above")
	cmd.MarkFlagRequired("learner")
	cmd.MarkFlagRequired("concept")
	cmd.MarkFlagRequired("quality")
	return cmd
}

func newImportCommand(a *app) *cobra.Command {
	var learner string
	importCfg := excel.DefaultImportConfig()
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Enroll concepts for a learner from an xlsx or csv file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseLearner(learner)
			if err != nil {
				return err
			}
			db, svc, err := a.openService()
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := excel.ImportConcepts(cmd.Context(), svc, id, importCfg)
			if err != nil {
				return err
			}
			a.logger.Info("import finished", "file", importCfg.FilePath,
				"created", result.Created, "skipped", result.Skipped, "errors", len(result.Errors))
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&learner, "learner", "", "learner id (uuid)")
	cmd.Flags().StringVar(&importCfg.FilePath, "file", "", "xlsx or csv file")
	cmd.Flags().StringVar(&importCfg.SheetName, "sheet", "", "sheet to read (default first sheet)")
	cmd.Flags().StringVar(&importCfg.NameColumn, "name-column", importCfg.NameColumn, "column with concept names")
	cmd.Flags().StringVar(&importCfg.DescriptionColumn, "description-column", importCfg.DescriptionColumn, "column with descriptions")
	cmd.Flags().IntVar(&importCfg.StartRow, "start-row", importCfg.StartRow, "first row to import (1-based)")
	cmd.MarkFlagRequired("learner")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var learner, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a learner's retention report to an xlsx file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseLearner(learner)
			if err != nil {
				return err
			}
			db, svc, err := a.openService()
			if err != nil {
				return err
			}
			defer db.Close()

			if _, err := svc.Learner(cmd.Context(), id); err != nil {
				return err
			}
			knowledge, err := svc.Knowledge(cmd.Context(), id)
			if err != nil {
				return err
			}
			logs, err := svc.Logs(cmd.Context(), id, time.Time{}, svc.Now())
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := excel.WriteReport(f, knowledge, logs); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d concepts and %d reviews to %s\n", len(knowledge), len(logs), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&learner, "learner", "", "learner id (uuid)")
	cmd.Flags().StringVar(&out, "out", "report.xlsx", "output file")
	cmd.MarkFlagRequired("learner")
	return cmd
}

func newRemindCommand(a *app) *cobra.Command {
	var learner string
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send a learner a reminder for everything due now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseLearner(learner)
			if err != nil {
				return err
			}
			if a.cfg.Telegram.Token == "" {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
			}
			db, svc, err := a.openService()
			if err != nil {
				return err
			}
			defer db.Close()

			notifier, err := bot.New(a.cfg.Telegram.Token, bot.WithLogger(a.logger))
			if err != nil {
				return err
			}
			sent, err := scheduler.New(svc, notifier, a.cfg.Scheduler, scheduler.WithLogger(a.logger)).
				RunManualCheck(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !sent {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing due")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reminder sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&learner, "learner", "", "learner id (uuid)")
	cmd.MarkFlagRequired("learner")
	return cmd
}
