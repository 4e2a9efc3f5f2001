package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/repository"
	"github.com/SoleStyle/solestyle/internal/config"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove all SoleStyle data",
	Long: `Reset SoleStyle by removing stored data.

For the file driver the storage directory is removed. For sqlite the
database file is removed. For redis every known key is deleted, including
each user's wishlist and cart. The cloud backup is removed with the rest.

On next start the catalog is reseeded from the bundled products.

Examples:
  # Reset with interactive confirmation
  solestyle reset

  # Reset without prompting
  solestyle reset --force`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

// resetTarget is a path removed by reset.
type resetTarget struct {
	path string
	desc string
}

// resetTargets lists the paths holding data for file-backed drivers.
func resetTargets(cfg *config.Config) []resetTarget {
	switch cfg.Storage.Driver {
	case "file":
		return []resetTarget{{cfg.Storage.Dir, "storage directory"}}
	case "sqlite":
		return []resetTarget{
			{cfg.Storage.SQLitePath, "sqlite database"},
			{cfg.Storage.SQLitePath + "-wal", "sqlite write-ahead log"},
			{cfg.Storage.SQLitePath + "-shm", "sqlite shared memory"},
		}
	}
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	errOut := cmd.ErrOrStderr()

	switch cfg.Storage.Driver {
	case "memory":
		fmt.Fprintln(errOut, "Memory storage holds nothing between runs; nothing to reset.")
		return nil
	case "redis":
		if !confirm(cmd.InOrStdin(), errOut, fmt.Sprintf("All SoleStyle keys under %q at %s will be deleted.", cfg.Storage.RedisPrefix, cfg.Storage.RedisAddr)) {
			return nil
		}
		return resetKeys(cmd.Context(), cfg)
	}

	var existing []resetTarget
	for _, t := range resetTargets(cfg) {
		if _, err := os.Stat(t.path); err == nil {
			existing = append(existing, t)
		}
	}
	if len(existing) == 0 {
		fmt.Fprintln(errOut, "Nothing to reset, no data files found.")
		return nil
	}

	fmt.Fprintln(errOut, "The following will be removed:")
	for _, t := range existing {
		fmt.Fprintf(errOut, "  - %s (%s)\n", t.path, t.desc)
	}
	if !confirm(cmd.InOrStdin(), errOut, "") {
		return nil
	}

	var failed int
	for _, t := range existing {
		if err := os.RemoveAll(t.path); err != nil {
			fmt.Fprintf(errOut, "  ERROR removing %s: %v\n", t.path, err)
			failed++
		} else {
			fmt.Fprintf(errOut, "  Removed %s\n", t.path)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d path(s) could not be removed", failed)
	}

	fmt.Fprintln(errOut, "\nReset complete. SoleStyle will reseed on next start.")
	return nil
}

// resetKeys deletes the fixed keys plus per-user wishlist and cart keys.
func resetKeys(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	keys := []string{
		repository.KeyCatalog,
		repository.KeyUsers,
		repository.KeySession,
		repository.KeyContacts,
		cfg.Backup.Key,
	}
	users, _, err := repository.NewUserRepository(store).Load(ctx)
	if err != nil {
		logger.Warn("could not list users; wishlists and carts are kept", "error", err)
	}
	for _, u := range users {
		keys = append(keys, repository.WishlistKey(u.ID), repository.CartKey(u.ID))
	}

	for _, k := range keys {
		if err := store.Remove(ctx, k); err != nil {
			return fmt.Errorf("remove %s: %w", k, err)
		}
	}
	logger.Info("storage reset", "keys", len(keys))
	return nil
}

// confirm asks for y/N unless --force was given.
func confirm(in io.Reader, out io.Writer, msg string) bool {
	if resetForce {
		return true
	}
	if msg != "" {
		fmt.Fprintln(out, msg)
	}
	fmt.Fprint(out, "\nProceed? [y/N] ")
	var answer string
	fmt.Fscanln(in, &answer) //nolint:errcheck // interactive prompt, error irrelevant
	if answer != "y" && answer != "Y" {
		fmt.Fprintln(out, "Aborted.")
		return false
	}
	return true
}
