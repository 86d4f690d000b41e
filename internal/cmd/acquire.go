package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Iron-Ham/ownership/internal/filelock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire <path>...",
	Short: "Lock files for an owner",
	Long: `Acquire locks on one or more files. All files are locked together or, if
any is held by another owner, none are.

Re-acquiring a file you already hold renews it. Without --owner a fresh
owner ID is generated and printed so later commands can reuse it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAcquire,
}

var (
	acquireOwner string
	acquireTTL   time.Duration
)

func init() {
	acquireCmd.Flags().StringVar(&acquireOwner, "owner", "", "lock owner (default: $OWNERSHIP_OWNER or a generated ID)")
	acquireCmd.Flags().DurationVar(&acquireTTL, "ttl", 0, "lock lifetime (default: lock.default_ttl)")
	rootCmd.AddCommand(acquireCmd)
}

func runAcquire(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	out := cmd.OutOrStdout()
	owner := resolveOwner(acquireOwner)
	if owner == "" {
		owner = "agent-" + uuid.NewString()
		fmt.Fprintf(out, "owner: %s\n", owner)
	}

	paths, err := ws.relPaths(args)
	if err != nil {
		return err
	}

	now := nowFunc()
	locks, err := ws.manager.AcquireMany(cmd.Context(), ws.scope, paths, owner, now, acquireTTL)
	if err != nil {
		var conflict *filelock.ConflictError
		if errors.As(err, &conflict) {
			warnf(cmd.ErrOrStderr(), "%s is held by %s for another %s",
				conflict.FilePath, conflict.Owner, conflict.Until().Sub(now).Round(time.Second))
		}
		return err
	}

	for _, l := range locks {
		fmt.Fprintf(out, "acquired %s (expires %s)\n", l.FilePath, l.ExpiresTime().Local().Format(time.DateTime))
	}
	return nil
}

// resolveOwner falls back to the OWNERSHIP_OWNER environment variable.
func resolveOwner(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return viper.GetString("owner")
}

// requireOwner is resolveOwner for commands that cannot invent an owner.
func requireOwner(flagValue string) (string, error) {
	owner := resolveOwner(flagValue)
	if owner == "" {
		return "", fmt.Errorf("%w: --owner is required", filelock.ErrInvalidLock)
	}
	return owner, nil
}
