package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/EzCall/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := cfg.GetHistoryPath()
			if err != nil {
				return err
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderHistory(out, records))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of calls to show")
	return cmd
}

func renderHistory(out io.Writer, records []history.Record) string {
	if len(records) == 0 {
		return "No calls recorded"
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Room,
			string(r.Role),
			r.Peer,
			formatCallDuration(r),
			r.AudioDevice,
			strconv.Itoa(r.MuteToggles),
			r.EndReason,
		})
	}
	return renderTable(out,
		[]string{"ID", "Started", "Room", "Role", "Peer", "Duration", "Output", "Mutes", "Ended"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	)
}

func formatCallDuration(r history.Record) string {
	if r.EndedAt == nil {
		return "ongoing"
	}
	return r.Duration().Round(time.Second).String()
}
