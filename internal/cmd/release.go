package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var releaseCmd = &cobra.Command{
	Use:   "release [<path>...]",
	Short: "Release locks held by an owner",
	Long: `Release locks held by --owner. Releasing a file that is not locked, or
whose lock already expired, succeeds silently. Releasing a file locked by
another owner fails; wait for that lock to expire instead.

With --all every lock held by the owner is released. With --match only the
owner's locks whose path matches the glob are released.`,
	RunE: runRelease,
}

var (
	releaseOwner string
	releaseAll   bool
	releaseMatch string
)

func init() {
	releaseCmd.Flags().StringVar(&releaseOwner, "owner", "", "lock owner (default: $OWNERSHIP_OWNER)")
	releaseCmd.Flags().BoolVar(&releaseAll, "all", false, "release every lock held by the owner")
	releaseCmd.Flags().StringVar(&releaseMatch, "match", "", "release the owner's locks whose path matches this glob")
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
	owner, err := requireOwner(releaseOwner)
	if err != nil {
		return err
	}
	if len(args) == 0 && !releaseAll && releaseMatch == "" {
		return errors.New("nothing to release: pass paths, --all or --match")
	}
	if len(args) > 0 && (releaseAll || releaseMatch != "") {
		return errors.New("paths cannot be combined with --all or --match")
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	now := nowFunc()

	if releaseAll {
		released, err := ws.manager.ReleaseAll(ctx, ws.scope, owner, now)
		if err != nil {
			return err
		}
		for _, l := range released {
			fmt.Fprintf(out, "released %s\n", l.FilePath)
		}
		fmt.Fprintf(out, "%d lock(s) released\n", len(released))
		return nil
	}

	paths := args
	if releaseMatch != "" {
		filter, err := newPathFilter(releaseMatch)
		if err != nil {
			return err
		}
		owned, err := ws.manager.OwnedBy(ctx, ws.scope, owner, now)
		if err != nil {
			return err
		}
		paths = nil
		for _, p := range owned {
			if filter.Match(p) {
				paths = append(paths, p)
			}
		}
	} else if paths, err = ws.relPaths(args); err != nil {
		return err
	}

	var errs []error
	for _, p := range paths {
		if err := ws.manager.Release(ctx, ws.scope, p, owner, now); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "released %s\n", p)
	}
	return errors.Join(errs...)
}
