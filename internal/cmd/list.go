package cmd

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show live locks in the scope",
	Long: `List the live locks of the scope. Expired locks are swept from the store
as a side effect.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listOwner  string
	listMatch  string
	listOutput string
)

func init() {
	listCmd.Flags().StringVar(&listOwner, "owner", "", "only show locks held by this owner")
	listCmd.Flags().StringVar(&listMatch, "match", "", "only show locks whose path matches this glob")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", formatTable, "output format: table, json or yaml")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	filter, err := newPathFilter(listMatch)
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	now := nowFunc()
	locks, err := ws.manager.List(cmd.Context(), ws.scope, now)
	if err != nil {
		return err
	}
	return renderLocks(cmd.OutOrStdout(), filterLocks(locks, listOwner, filter), listOutput, now)
}
