package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/dronerecon/internal/services"
)

func errUnknownFormat(format string) error {
	return fmt.Errorf("unknown output format %q (want table, csv or json)", format)
}

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
	}

	var format string
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions with their completion flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := services.NewExportService(cfg, store).Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd, sessions)
			}
			headers, rows := sessionRows(sessions)
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
			return writeRows(cmd, format, headers, rows, aligns)
		},
	}
	list.Flags().StringVar(&format, "format", "", "Output format: table, csv or json (default table on a terminal, csv otherwise)")
	cmd.AddCommand(list)
	return cmd
}

func sessionRows(sessions []services.SessionSummary) ([]string, [][]string) {
	headers := []string{"Session", "Participant", "Mix", "Started", "Questionnaires", "Task", "Complete", "Attention", "Trials", "Browser"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.SessionID,
			s.ExternalID,
			s.ActivityMix,
			s.StartTime.UTC().Format("2006-01-02 15:04"),
			yesNo(s.QuestionnaireCompleted),
			yesNo(s.TaskCompleted),
			yesNo(s.SessionCompleted),
			yesNo(s.PassedAttentionCheck),
			strconv.Itoa(s.NTrials),
			s.Browser,
		})
	}
	return headers, rows
}
