package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type verifyFlags struct {
	JSON bool
}

// newVerifyCmd implements "sps verify": a full consistency sweep of the
// store. It recomputes every derived aggregate from the leaves, re-checks
// the forest and DAG shapes, and re-hashes every audit log chain.
func newVerifyCmd() *cobra.Command {
	var flags verifyFlags

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the whole store against the engine's invariants",
		Long: `Verify walks every task, context, and audit log in the store and reports
anything inconsistent: hierarchy cycles, dependency cycles, stale derived
completion or assignee aggregates, orphaned context references, statuses
outside the configured set, and broken log checksum chains.

A clean run exits 0; any finding exits 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			r, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			report, err := r.svc.Verify(ctx)
			if err != nil {
				return err
			}

			if flags.JSON {
				out := struct {
					OK           bool     `json:"ok"`
					TasksChecked int      `json:"tasks_checked"`
					LogsChecked  int      `json:"logs_checked"`
					Findings     []string `json:"findings"`
				}{
					OK:           report.OK(),
					TasksChecked: report.TasksChecked,
					LogsChecked:  report.LogsChecked,
					Findings:     make([]string, 0, len(report.Findings)),
				}
				for _, f := range report.Findings {
					out.Findings = append(out.Findings, f.String())
				}
				if printErr := printJSON(cmd, out); printErr != nil {
					return printErr
				}
			} else {
				stderr := cmd.ErrOrStderr()
				fmt.Fprintf(stderr, "Checked %d tasks and %d log chains\n", report.TasksChecked, report.LogsChecked)
				if report.OK() {
					fmt.Fprintln(stderr, styleSuccess.Render("No problems found."))
				} else {
					fmt.Fprintln(stderr, styleErrorLbl.Render(fmt.Sprintf("%d finding(s):", len(report.Findings))))
					for _, f := range report.Findings {
						fmt.Fprintf(stderr, "  %s\n", f.String())
					}
				}
			}

			if !report.OK() {
				return fmt.Errorf("store verification found %d problem(s)", len(report.Findings))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Output the report as JSON")

	return cmd
}

func init() {
	rootCmd.AddCommand(newVerifyCmd())
}
