package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cadence/academy/core/training"
)

func (cli *commandLine) progressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect and migrate training progress",
	}
	cmd.AddCommand(cli.progressMoveCmd(), cli.progressShowCmd())
	return cmd
}

func (cli *commandLine) progressMoveCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move every user's progress from one unit to another, merging with existing records",
		Example: `  admin progress move --from module:<id> --to module:<id>
  admin progress move --from section:<id> --to section:<id>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := training.ParseUnit(from)
			if err != nil {
				return err
			}
			dst, err := training.ParseUnit(to)
			if err != nil {
				return err
			}
			report, err := cli.migrator.MoveProgress(cmd.Context(), src, dst)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d moved, %d merged\n", report.Moved, report.Merged)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source unit (required)")
	cmd.Flags().StringVar(&to, "to", "", "target unit (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (cli *commandLine) progressShowCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a user's progress records and standing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			usr, err := cli.usrSvc.GetByEmail(ctx, email)
			if err != nil {
				return err
			}
			records, err := cli.trainingSvc.UserProgress(ctx, usr.ID)
			if err != nil {
				return err
			}
			summary, err := cli.trainingSvc.Summarize(ctx, usr.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "UNIT\tSTATUS\tVIDEO\tTRANSCRIPT\tBEST\tATTEMPTS")
			for _, p := range records {
				fmt.Fprintf(w, "%s\t%s\t%d%%\t%t\t%d\t%d\n",
					p.Unit, p.Status, p.VideoWatchPercentage, p.TranscriptViewed, p.BestScore(), p.AssessmentAttempts)
			}
			if err = w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d/%d modules completed, average score %d\n",
				summary.CompletedModules, summary.TotalModules, summary.AverageScore)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's email (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
