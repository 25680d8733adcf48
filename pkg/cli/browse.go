package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quocson95/ftpfleet/pkg/browse"
	"github.com/quocson95/ftpfleet/pkg/fanout"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

func newListCmd(envFn func() *env) *cobra.Command {
	return &cobra.Command{
		Use:     "ls <server> [path]",
		Aliases: []string{"list"},
		Short:   "List a remote directory",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()
			_, p, err := resolveServer(e.servers, args[0])
			if err != nil {
				return err
			}
			dir := ""
			if len(args) == 2 {
				dir = args[1]
			}

			entries, cwd, err := browse.New(e.opener, e.log).List(cmd.Context(), p, dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s:%s\n", p.DisplayName, cwd)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, entry := range entries {
				size := "-"
				if entry.Size != nil {
					size = fmt.Sprint(*entry.Size)
				}
				name := entry.Name
				if entry.IsDir() {
					name += "/"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", entry.Kind, size, entry.ModifiedAt, name)
			}
			return tw.Flush()
		},
	}
}

func newGetCmd(envFn func() *env) *cobra.Command {
	var (
		isDir bool
		to    string
	)
	cmd := &cobra.Command{
		Use:   "get <server> <remote-path>",
		Short: "Download a file or directory from one server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()
			_, p, err := resolveServer(e.servers, args[0])
			if err != nil {
				return err
			}
			if to == "" {
				to = e.settings.Get().LocalDownloadDir
			}
			if to == "" {
				if to, err = os.Getwd(); err != nil {
					return err
				}
			}

			bars := newFleetProgress(cmd.OutOrStdout(), []storage.Profile{p})
			err = browse.New(e.opener, e.log).Download(cmd.Context(), p, args[1], to, isDir, func(done, total uint64) {
				bars.Progress(fanout.ProgressEvent{Host: p.Host, BytesDone: done, BytesTotal: total})
			})
			final := fanout.StatusEvent{Host: p.Host, Message: fanout.MsgSuccess, Code: fanout.Success}
			if err != nil {
				final = fanout.StatusEvent{Host: p.Host, Message: "Failed: " + err.Error(), Code: fanout.Failed}
			}
			bars.Status(final)
			bars.Wait()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s to %s\n", args[1], to)
			return nil
		},
	}
	cmd.Flags().BoolVar(&isDir, "dir", false, "Remote path is a directory")
	cmd.Flags().StringVar(&to, "to", "", "Local target directory (default: settings download dir, then cwd)")
	return cmd
}

func newRemoveCmd(envFn func() *env) *cobra.Command {
	var (
		isDir bool
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "rm <server> <remote-path>",
		Short: "Delete a remote file or directory tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()
			_, p, err := resolveServer(e.servers, args[0])
			if err != nil {
				return err
			}
			if !yes {
				what := "file"
				if isDir {
					what = "directory tree"
				}
				ok, err := confirm(cmd, fmt.Sprintf("Delete %s %s on %s?", what, args[1], p.DisplayName))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			if err := browse.New(e.opener, e.log).Delete(cmd.Context(), p, args[1], isDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&isDir, "dir", false, "Remote path is a directory; delete it recursively")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newTestCmd(envFn func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "test [server...]",
		Short: "Test connectivity to servers (default: all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFn()
			profiles := e.servers.List()
			if len(args) > 0 {
				profiles = profiles[:0:0]
				for _, arg := range args {
					_, p, err := resolveServer(e.servers, arg)
					if err != nil {
						return err
					}
					profiles = append(profiles, p)
				}
			}

			b := browse.New(e.opener, e.log)
			failed := 0
			for _, p := range profiles {
				ok, msg := b.TestConnection(cmd.Context(), p)
				mark := "OK  "
				if !ok {
					mark = "FAIL"
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", mark, p.DisplayName, msg)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d servers unreachable", failed, len(profiles))
			}
			return nil
		},
	}
}
