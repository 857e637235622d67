package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/server"
	"github.com/teranos/warden/sym"
)

// ConditionCmd groups notification-condition subcommands
var ConditionCmd = &cobra.Command{
	Use:   "condition",
	Short: sym.Track + " Manage notification conditions",
	Long: `Manage notification conditions. A condition is an expression over a
job's tracked scalars; when it holds, the job's notifiers fire.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// ConditionAddCmd registers a condition on one job
var ConditionAddCmd = &cobra.Command{
	Use:   "add <job> <expr>",
	Short: "Add a notification condition to a job",
	Long: `Add a notification condition to a job. The expression is evaluated
against the job's tracked scalars each time a value arrives; comparison
and arithmetic operators are supported.

Examples:
  warden condition add 3 'loss < 0.1'
  warden condition add nightly 'accuracy > 0.95' --title "Target accuracy"
  warden condition add 3 'loss < best_loss' --default 1e9 --cooldown 300`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		id, err := resolveJob(cmd.Context(), c, args[0])
		if err != nil {
			return err
		}

		req := server.ConditionRequest{
			ID:              id,
			Expr:            args[1],
			Names:           conditionNames,
			Title:           conditionTitle,
			CooldownSeconds: conditionCooldown,
			OnlyRelevant:    conditionOnlyRelevant,
		}
		if cmd.Flags().Changed("default") {
			req.Default = &conditionDefault
		}
		if err := c.AddCondition(cmd.Context(), req); err != nil {
			return fmt.Errorf("failed to add condition: %w", err)
		}
		fmt.Printf("%s Condition added: %s\n", sym.Track, args[1])
		return nil
	},
}

var (
	conditionNames        []string
	conditionTitle        string
	conditionCooldown     float64
	conditionDefault      float64
	conditionOnlyRelevant bool
)

func init() {
	ConditionAddCmd.Flags().StringSliceVar(&conditionNames, "names", nil, "Scalar names the condition reads (default: inferred from the expression)")
	ConditionAddCmd.Flags().StringVar(&conditionTitle, "title", "", "Notification title when the condition fires")
	ConditionAddCmd.Flags().Float64Var(&conditionCooldown, "cooldown", 0, "Seconds to suppress refiring after a hit")
	ConditionAddCmd.Flags().Float64Var(&conditionDefault, "default", 0, "Value for scalars not yet reported")
	ConditionAddCmd.Flags().BoolVar(&conditionOnlyRelevant, "only-relevant", false, "Evaluate only when a named scalar changes")

	ConditionCmd.AddCommand(ConditionAddCmd)
}
