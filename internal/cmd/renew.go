package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var renewCmd = &cobra.Command{
	Use:   "renew <path>...",
	Short: "Extend locks held by an owner",
	Long: `Renew extends the owner's live locks to now + --ttl. Unlike acquire it
never creates a lock: renewing a file that is not locked (or whose lock
expired) fails, as does renewing a lock held by someone else.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRenew,
}

var (
	renewOwner string
	renewTTL   time.Duration
)

func init() {
	renewCmd.Flags().StringVar(&renewOwner, "owner", "", "lock owner (default: $OWNERSHIP_OWNER)")
	renewCmd.Flags().DurationVar(&renewTTL, "ttl", 0, "new lock lifetime from now (default: lock.default_ttl)")
	rootCmd.AddCommand(renewCmd)
}

func runRenew(cmd *cobra.Command, args []string) error {
	owner, err := requireOwner(renewOwner)
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	paths, err := ws.relPaths(args)
	if err != nil {
		return err
	}

	now := nowFunc()
	var errs []error
	for _, p := range paths {
		l, err := ws.manager.Renew(cmd.Context(), ws.scope, p, owner, now, renewTTL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "renewed %s (expires %s)\n", l.FilePath, l.ExpiresTime().Local().Format(time.DateTime))
	}
	return errors.Join(errs...)
}
