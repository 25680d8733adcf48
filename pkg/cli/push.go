package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quocson95/ftpfleet/pkg/fanout"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

func newPushCmd(envFn func() *env) *cobra.Command {
	var remoteDir string
	var only []string

	cmd := &cobra.Command{
		Use:   "push <path>...",
		Short: "Upload files and directories to every enabled server",
		Long: `Upload the given local files and directories to every enabled server at
once. Each server gets its own connection; a failure on one server does not
affect the others. Servers with their own remote directory use it, the rest use
--remote-dir (default: the configured default remote directory).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()

			if !cmd.Flags().Changed("remote-dir") {
				remoteDir = e.settings.Get().DefaultRemoteDir
			}

			profiles := e.servers.List()
			if len(only) > 0 {
				var err error
				if profiles, err = selectServers(e.servers, only); err != nil {
					return err
				}
			}
			if len(profiles) == 0 {
				return fmt.Errorf("no servers configured, add one with 'ftpfleet server add'")
			}

			out := cmd.OutOrStdout()
			ui := newFleetProgress(out, profiles)
			run := fanout.NewDispatcher(e.opener, e.log).
				Distribute(cmd.Context(), profiles, args, remoteDir, ui, ui)
			results := run.Wait()
			ui.Wait()

			return summarize(out, results)
		},
	}

	cmd.Flags().StringVarP(&remoteDir, "remote-dir", "d", "", "Remote directory for servers without their own")
	cmd.Flags().StringSliceVarP(&only, "server", "s", nil, "Only these servers (name, host or list number; repeatable)")
	return cmd
}

// selectServers resolves names to profiles. Explicitly selected servers are
// uploaded to even when disabled.
func selectServers(store *storage.Store, names []string) ([]storage.Profile, error) {
	profiles := make([]storage.Profile, 0, len(names))
	for _, name := range names {
		_, p, err := resolveServer(store, name)
		if err != nil {
			return nil, err
		}
		p.Enabled = true
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func summarize(out io.Writer, results []fanout.Result) error {
	var ok, skipped int
	var failed []string
	for _, r := range results {
		switch {
		case r.Skipped:
			skipped++
		case r.Success:
			ok++
		default:
			failed = append(failed, fmt.Sprintf("  %s: %v", r.Profile.DisplayName, r.Err))
		}
	}

	fmt.Fprintf(out, "\n%d succeeded, %d failed, %d skipped\n", ok, len(failed), skipped)
	if len(failed) > 0 {
		fmt.Fprintln(out, strings.Join(failed, "\n"))
		return fmt.Errorf("upload failed on %d server(s)", len(failed))
	}
	return nil
}
