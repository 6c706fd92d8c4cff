package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trezcool/ilmlab/core/progress"
)

func (cli *commandLine) reconcileCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "reconcile USER_ID",
		Short: "Repair the lesson scores and xp of a user",
		Long: "Repair the lesson scores and recompute the xp of a user, as a sign-in would.\n" +
			"It does not count as a login: streak and last login date are left as stored.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := cli.ledger.Repair(context.Background(), args[0], dryRun)
			if err != nil {
				return err
			}
			printReconciliation(cmd.OutOrStdout(), res, dryRun)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the outcome without writing it")
	return cmd
}

func printReconciliation(w io.Writer, res progress.Reconciliation, dryRun bool) {
	rec := res.Record
	fmt.Fprintf(w, "user:    %s\n", rec.ID)
	if res.XPCorrected {
		fmt.Fprintf(w, "xp:      %v -> %v\n", float64(res.PreviousXP), float64(rec.XP))
	} else {
		fmt.Fprintf(w, "xp:      %v\n", float64(rec.XP))
	}
	if len(res.RepairedLessons) > 0 {
		fmt.Fprintf(w, "repaired lessons: %s\n", strings.Join(res.RepairedLessons, ", "))
	}
	if res.StreakChanged {
		fmt.Fprintf(w, "streak:  %d -> %d (%s)\n", res.PreviousStreak, rec.Streak, rec.LastLoginDate)
	} else {
		fmt.Fprintf(w, "streak:  %d\n", rec.Streak)
	}
	switch {
	case !res.Dirty():
		fmt.Fprintln(w, "record is clean")
	case dryRun:
		fmt.Fprintln(w, "dry run, nothing written")
	}
}
