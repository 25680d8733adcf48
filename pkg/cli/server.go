package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quocson95/ftpfleet/pkg/storage"
)

// resolveServer finds a server by list number (1-based), display name or host
func resolveServer(store *storage.Store, arg string) (int, storage.Profile, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		p, err := store.Get(n - 1)
		if err != nil {
			return -1, storage.Profile{}, fmt.Errorf("no server number %d", n)
		}
		return n - 1, p, nil
	}
	return store.FindByName(arg)
}

func printServers(w io.Writer, profiles []storage.Profile) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tADDRESS\tUSER\tPROTO\tREMOTE DIR\tENABLED")
	for i, p := range profiles {
		dir := p.RemoteBaseDir
		if dir == "" {
			dir = "-"
		}
		enabled := "yes"
		if !p.Enabled {
			enabled = "no"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", i+1, p.DisplayName, p.Address(), p.Username, p.Protocol, dir, enabled)
	}
	tw.Flush()
}

type profileFlags struct {
	name      string
	host      string
	port      int
	username  string
	password  string
	remoteDir string
	protocol  string
	active    bool
	disabled  bool
}

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Display name (default: host)")
	cmd.Flags().StringVar(&f.host, "host", "", "Server host name or address")
	cmd.Flags().IntVar(&f.port, "port", 0, "Port (default 21 for ftp, 22 for sftp)")
	cmd.Flags().StringVarP(&f.username, "user", "u", storage.DefaultUsername, "Login user")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "Login password")
	cmd.Flags().StringVar(&f.remoteDir, "remote-dir", "", "Remote directory overriding the default")
	cmd.Flags().StringVar(&f.protocol, "protocol", storage.ProtocolFTP, "ftp or sftp")
	cmd.Flags().BoolVar(&f.active, "active", false, "Request active mode FTP")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "Add the server disabled")
}

// apply copies the flags that were set onto p
func (f *profileFlags) apply(cmd *cobra.Command, p *storage.Profile) {
	changed := cmd.Flags().Changed
	if changed("host") {
		p.Host = f.host
	}
	if changed("name") {
		p.DisplayName = f.name
	}
	if changed("protocol") {
		p.Protocol = f.protocol
		if !changed("port") && f.protocol == storage.ProtocolSFTP && p.Port == storage.DefaultPort {
			p.Port = 22
		}
	}
	if changed("port") {
		p.Port = f.port
	}
	if changed("user") {
		p.Username = f.username
	}
	if changed("password") {
		p.Password = f.password
	}
	if changed("remote-dir") {
		p.RemoteBaseDir = f.remoteDir
	}
	if changed("active") {
		p.PassiveMode = !f.active
	}
	if changed("disabled") {
		p.Enabled = !f.disabled
	}
}

func newServerCmd(envFn func() *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "server",
		Aliases: []string{"servers"},
		Short:   "Manage the server list",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printServers(cmd.OutOrStdout(), envFn().servers.List())
			return nil
		},
	})

	addFlags := &profileFlags{}
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addFlags.host == "" {
				return fmt.Errorf("--host is required")
			}
			p := storage.NewProfile(addFlags.host)
			addFlags.apply(cmd, &p)
			if p.DisplayName == "" {
				p.DisplayName = p.Host
			}
			if err := envFn().servers.Add(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", p.DisplayName, p.Address())
			return nil
		},
	}
	addFlags.register(addCmd)
	cmd.AddCommand(addCmd)

	editFlags := &profileFlags{}
	editCmd := &cobra.Command{
		Use:   "edit <server>",
		Short: "Change fields of a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := envFn().servers
			i, p, err := resolveServer(store, args[0])
			if err != nil {
				return err
			}
			editFlags.apply(cmd, &p)
			if err := store.Update(i, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", p.DisplayName)
			return nil
		},
	}
	editFlags.register(editCmd)
	cmd.AddCommand(editCmd)

	cmd.AddCommand(&cobra.Command{
		Use:     "rm <server>",
		Aliases: []string{"remove"},
		Short:   "Remove a server",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := envFn().servers
			i, p, err := resolveServer(store, args[0])
			if err != nil {
				return err
			}
			if err := store.Remove(i); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", p.DisplayName)
			return nil
		},
	})

	for _, enable := range []bool{true, false} {
		use, verb, done := "enable <server>", "Enable", "Enabled"
		if !enable {
			use, verb, done = "disable <server>", "Disable", "Disabled"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: verb + " a server for uploads",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store := envFn().servers
				i, p, err := resolveServer(store, args[0])
				if err != nil {
					return err
				}
				if err := store.SetEnabled(i, enable); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", done, p.DisplayName)
				return nil
			},
		})
	}

	return cmd
}
