// Package cli provides the ftpfleet command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quocson95/ftpfleet/pkg/logging"
	"github.com/quocson95/ftpfleet/pkg/session"
	"github.com/quocson95/ftpfleet/pkg/storage"
	"github.com/quocson95/ftpfleet/pkg/tui"
)

// Version is set by the main package
var Version = "dev"

// DataDirEnv overrides the default data directory
const DataDirEnv = "FTPFLEET_DATA_DIR"

// newOpener builds the session opener; tests swap it for an in-memory fleet
var newOpener = func(opts session.Options, log zerolog.Logger) session.Opener {
	return session.NewManager(opts, log)
}

// env is what every command works with
type env struct {
	dataDir  string
	log      zerolog.Logger
	servers  *storage.Store
	settings *storage.SettingsStore
	opener   session.Opener
	closer   io.Closer
}

func (e *env) Close() error {
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

type rootFlags struct {
	dataDir string
	verbose bool
}

func defaultDataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".ftpfleet"
	}
	return filepath.Join(homeDir, ".ftpfleet")
}

func openEnv(flags *rootFlags, console bool) (*env, error) {
	if err := os.MkdirAll(flags.dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	log, closer, err := logging.Setup(logging.Options{
		DataDir: flags.dataDir,
		Verbose: flags.verbose && console,
	})
	if err != nil {
		return nil, err
	}

	servers, err := storage.NewStore(flags.dataDir)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to load servers: %w", err)
	}
	settings, err := storage.NewSettingsStore(flags.dataDir)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return &env{
		dataDir:  flags.dataDir,
		log:      log,
		servers:  servers,
		settings: settings,
		opener:   newOpener(session.OptionsFromSettings(settings.Get()), log),
		closer:   closer,
	}, nil
}

// NewRootCmd creates the root command. Without a subcommand it starts the
// terminal UI.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	var e *env

	rootCmd := &cobra.Command{
		Use:   "ftpfleet",
		Short: "Distribute files to many FTP/SFTP servers at once",
		Long: `ftpfleet uploads a set of local files and directories to every enabled
server concurrently, and browses, downloads from and deletes on a single server.

Run without a command to open the terminal UI.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			e, err = openEnv(flags, cmd != cmd.Root())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return e.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			model := tui.NewAppModel(tui.Deps{
				Servers:  e.servers,
				Settings: e.settings,
				Opener:   e.opener,
				Log:      e.log,
			})
			if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("failed to run terminal UI: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", defaultDataDir(), "Directory holding servers.json, settings.json and logs (env "+DataDirEnv+")")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Print debug logs to stderr")

	envFn := func() *env { return e }
	rootCmd.AddCommand(
		newPushCmd(envFn),
		newListCmd(envFn),
		newGetCmd(envFn),
		newRemoveCmd(envFn),
		newTestCmd(envFn),
		newServerCmd(envFn),
		newSettingsCmd(envFn),
		newBackupCmd(envFn),
	)
	return rootCmd
}

// Execute runs the root command with signal-aware cancellation and returns
// the process exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
