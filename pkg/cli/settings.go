package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quocson95/ftpfleet/pkg/storage"
)

// settingKeys maps the names accepted by "settings set" to their fields
var settingKeys = map[string]func(s *storage.Settings, v string) error{
	"default-remote-dir": func(s *storage.Settings, v string) error { s.DefaultRemoteDir = v; return nil },
	"download-dir":       func(s *storage.Settings, v string) error { s.LocalDownloadDir = v; return nil },
	"connect-timeout":    intSetting(func(s *storage.Settings, n int) { s.ConnectTimeoutSeconds = n }),
	"transfer-timeout":   intSetting(func(s *storage.Settings, n int) { s.TransferTimeoutSeconds = n }),
	"s3-host":            func(s *storage.Settings, v string) error { s.S3Host = v; return nil },
	"s3-access-key":      func(s *storage.Settings, v string) error { s.S3AccessKey = v; return nil },
	"s3-secret-key":      func(s *storage.Settings, v string) error { s.S3SecretKey = v; return nil },
	"s3-bucket":          func(s *storage.Settings, v string) error { s.S3Bucket = v; return nil },
}

func intSetting(set func(s *storage.Settings, n int)) func(s *storage.Settings, v string) error {
	return func(s *storage.Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("expected a positive number of seconds, got %q", v)
		}
		set(s, n)
		return nil
	}
}

func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}

func newSettingsCmd(envFn func() *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change application settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()
			s := e.settings.Get()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data-dir:           %s\n", e.dataDir)
			fmt.Fprintf(out, "default-remote-dir: %s\n", s.DefaultRemoteDir)
			fmt.Fprintf(out, "download-dir:       %s\n", s.LocalDownloadDir)
			fmt.Fprintf(out, "connect-timeout:    %s\n", s.ConnectTimeout())
			fmt.Fprintf(out, "transfer-timeout:   %s\n", s.TransferTimeout())
			fmt.Fprintf(out, "s3-host:            %s\n", s.S3Host)
			fmt.Fprintf(out, "s3-access-key:      %s\n", s.S3AccessKey)
			fmt.Fprintf(out, "s3-secret-key:      %s\n", maskSecret(s.S3SecretKey))
			fmt.Fprintf(out, "s3-bucket:          %s\n", s.S3Bucket)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long: `Change one setting. Keys: default-remote-dir, download-dir, connect-timeout,
transfer-timeout, s3-host, s3-access-key, s3-secret-key, s3-bucket.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, ok := settingKeys[args[0]]
			if !ok {
				return fmt.Errorf("unknown setting %q", args[0])
			}
			e := envFn()
			s := e.settings.Get()
			if err := set(&s, args[1]); err != nil {
				return err
			}
			if err := e.settings.Update(s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := envFn().settings.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings reset")
			return nil
		},
	})

	return cmd
}
