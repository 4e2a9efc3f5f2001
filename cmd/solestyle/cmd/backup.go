package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SoleStyle/solestyle/internal/service"
)

var backupOutput string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage the cloud backup",
	Long: `Upload, inspect, download, restore or delete the cloud backup.

The backup bundles the catalog, hero list, user directory and contact
messages into one snapshot. Restore overwrites local data.`,
}

var backupUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a snapshot of local data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			snap, err := a.backups.Upload(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d products, %d users, %d contacts at %s\n",
				len(snap.Products), len(snap.Users), len(snap.Contacts), snap.UploadedAt.Format(time.RFC3339))
			return nil
		})
	},
}

var backupDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Write the backup snapshot as JSON without applying it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			snap, err := a.backups.Download(ctx)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			return writeOutput(cmd, backupOutput, data)
		})
	},
}

var backupInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show when the backup was taken and its size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			info, err := a.backups.Info(ctx)
			if service.IsNoBackup(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "No backup found.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Last modified: %s\nSize:          %d bytes\n",
				info.LastModified.Format(time.RFC3339), info.Size)
			return nil
		})
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace local data with the backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			snap, err := a.backups.Restore(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d products, %d users, %d contacts from %s\n",
				len(snap.Products), len(snap.Users), len(snap.Contacts), snap.UploadedAt.Format(time.RFC3339))
			return nil
		})
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if err := a.backups.Delete(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Backup deleted.")
			return nil
		})
	},
}

func init() {
	backupDownloadCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "write to file instead of stdout")
	backupCmd.AddCommand(backupUploadCmd, backupDownloadCmd, backupInfoCmd, backupRestoreCmd, backupDeleteCmd)
	rootCmd.AddCommand(backupCmd)
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
	return nil
}
