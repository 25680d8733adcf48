package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quocson95/ftpfleet/pkg/backup"
	"github.com/quocson95/ftpfleet/pkg/s3"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

// BackupPasswordEnv supplies the backup password non-interactively
const BackupPasswordEnv = "FTPFLEET_BACKUP_PASSWORD"

// newObjectStore connects to the configured bucket; tests swap it
var newObjectStore = func(ctx context.Context, s storage.Settings) (backup.ObjectStore, error) {
	return s3.NewClientFromSettings(ctx, s)
}

func backupPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if pw := os.Getenv(BackupPasswordEnv); pw != "" {
		return pw, nil
	}
	return readPassword(cmd, "Backup password: ")
}

func newBackupCmd(envFn func() *env) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up or restore the server list through S3",
		Long: `Back up or restore the server list and default remote directory. Backups
are encrypted with a password and stored in the configured S3 bucket
(see 'ftpfleet settings set s3-host ...').`,
	}
	cmd.PersistentFlags().StringVar(&password, "password", "", "Encryption password (env "+BackupPasswordEnv+", prompted otherwise)")

	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Encrypt and upload the server list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()
			settings := e.settings.Get()
			store, err := newObjectStore(cmd.Context(), settings)
			if err != nil {
				return err
			}
			pw, err := backupPassword(cmd, password)
			if err != nil {
				return err
			}

			payload := backup.Payload{
				Servers:          e.servers.Records(),
				DefaultRemoteDir: settings.DefaultRemoteDir,
			}
			key, err := backup.Push(cmd.Context(), store, payload, pw, time.Now())
			if err != nil {
				return err
			}
			e.log.Info().Str("key", key).Int("servers", len(payload.Servers)).Msg("backup uploaded")
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d servers to %s\n", len(payload.Servers), key)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pull",
		Short: "Download the newest backup and replace the server list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()
			store, err := newObjectStore(cmd.Context(), e.settings.Get())
			if err != nil {
				return err
			}
			pw, err := backupPassword(cmd, password)
			if err != nil {
				return err
			}

			payload, key, err := backup.Pull(cmd.Context(), store, pw)
			if err != nil {
				return err
			}
			if err := e.servers.Replace(payload.Servers); err != nil {
				return err
			}
			if payload.DefaultRemoteDir != "" {
				if err := e.settings.SetDefaultRemoteDir(payload.DefaultRemoteDir); err != nil {
					return err
				}
			}
			e.log.Info().Str("key", key).Int("servers", len(payload.Servers)).Msg("backup restored")
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d servers from %s\n", len(payload.Servers), key)
			return nil
		},
	})

	return cmd
}
