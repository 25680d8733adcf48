package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/quocson95/ftpfleet/pkg/listing"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

// sftpSession runs over SSH. SFTP has no server-side working directory, so the
// session keeps its own and resolves relative paths against it.
type sftpSession struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	cwd        string
	log        zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// DialSFTP connects to an SSH endpoint and starts the sftp subsystem
func DialSFTP(ctx context.Context, p storage.Profile, opts Options, log zerolog.Logger) (Session, error) {
	config := &ssh.ClientConfig{
		User:            p.Username,
		Auth:            authMethods(p.Password),
		HostKeyCallback: hostKeyCallback(log),
		Timeout:         opts.ConnectTimeout,
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Address())
	if err != nil {
		return nil, wrap(ErrConnect, "failed to dial "+p.Address(), err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(newDeadlineConn(conn, opts.TransferTimeout), p.Address(), config)
	if err != nil {
		conn.Close()
		if isSSHAuthError(err) {
			return nil, wrap(ErrAuth, "failed to log in as "+p.Username, err)
		}
		return nil, wrap(ErrConnect, "failed to handshake with "+p.Address(), err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, wrap(ErrConnect, "failed to create SFTP client", err)
	}

	cwd, err := sftpClient.Getwd()
	if err != nil || cwd == "" {
		cwd = "/"
	}

	log.Debug().Str("addr", p.Address()).Str("cwd", cwd).Msg("sftp session opened")
	return &sftpSession{sshClient: sshClient, sftpClient: sftpClient, cwd: cwd, log: log}, nil
}

// isSSHAuthError reports a handshake that ended because every auth method was
// rejected. x/crypto/ssh has no typed error for this on the client side, only
// the message of its "no supported methods remain" failure.
func isSSHAuthError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ssh: unable to authenticate")
}

// authMethods offers the password both directly and through
// keyboard-interactive, then any default key found in ~/.ssh.
func authMethods(password string) []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if password != "" {
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}
	if signers := defaultSigners(); len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	return methods
}

func defaultSigners() []ssh.Signer {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var signers []ssh.Signer
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		content, err := os.ReadFile(filepath.Join(homeDir, ".ssh", name))
		if err != nil {
			continue
		}
		// encrypted keys need a passphrase we do not have
		signer, err := ssh.ParsePrivateKey(content)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}
	return signers
}

// hostKeyCallback verifies against ~/.ssh/known_hosts. Hosts never seen before
// are appended on first use; a changed key is rejected.
func hostKeyCallback(log zerolog.Logger) ssh.HostKeyCallback {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ssh.InsecureIgnoreHostKey()
	}

	sshDir := filepath.Join(homeDir, ".ssh")
	knownHostsPath := filepath.Join(sshDir, "known_hosts")

	if _, err := os.Stat(sshDir); os.IsNotExist(err) {
		os.MkdirAll(sshDir, 0700)
	}
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		f, err := os.OpenFile(knownHostsPath, os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return ssh.InsecureIgnoreHostKey()
		}
		f.Close()
	}

	check, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return ssh.InsecureIgnoreHostKey()
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			return err
		}

		f, ferr := os.OpenFile(knownHostsPath, os.O_APPEND|os.O_WRONLY, 0600)
		if ferr != nil {
			return fmt.Errorf("failed to record host key: %w", ferr)
		}
		defer f.Close()

		line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
		if _, ferr := f.WriteString(line + "\n"); ferr != nil {
			return fmt.Errorf("failed to record host key: %w", ferr)
		}
		log.Info().Str("host", hostname).Str("fingerprint", ssh.FingerprintSHA256(key)).Msg("added new host key to known_hosts")
		return nil
	}
}

func (s *sftpSession) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(s.cwd, p)
}

func (s *sftpSession) EnsureDir(p string) error {
	return EnsureDir(s, p)
}

func (s *sftpSession) ChangeDir(p string) error {
	target := s.resolve(p)
	info, err := s.sftpClient.Stat(target)
	if err != nil {
		return wrap(ErrPath, "failed to change directory to "+p, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrPath, p)
	}
	s.cwd = target
	return nil
}

func (s *sftpSession) CurrentDir() (string, error) {
	return s.cwd, nil
}

func (s *sftpSession) MakeDir(name string) error {
	return wrap(ErrPath, "failed to create directory "+name, s.sftpClient.Mkdir(s.resolve(name)))
}

func (s *sftpSession) ListFacts() ([]listing.Record, error) {
	infos, err := s.sftpClient.ReadDir(s.cwd)
	if err != nil {
		return nil, wrap(ErrListing, "failed to list directory", err)
	}

	records := make([]listing.Record, 0, len(infos))
	for _, info := range infos {
		facts := map[string]string{
			"modify": info.ModTime().UTC().Format(modifyLayout),
		}
		switch {
		case info.IsDir():
			facts["type"] = "dir"
		case info.Mode()&os.ModeSymlink != 0:
			facts["type"] = "OS.unix=symlink"
		default:
			facts["type"] = "file"
			facts["size"] = fmt.Sprint(info.Size())
		}
		records = append(records, listing.Record{Name: info.Name(), Facts: facts})
	}
	return records, nil
}

// ListLines runs ls over an exec channel for servers whose sftp subsystem
// cannot read the directory.
func (s *sftpSession) ListLines() ([]string, error) {
	sess, err := s.sshClient.NewSession()
	if err != nil {
		return nil, wrap(ErrListing, "failed to open exec channel", err)
	}
	defer sess.Close()

	out, err := sess.Output("LC_ALL=C ls -la " + shellQuote(s.cwd))
	if err != nil {
		return nil, wrap(ErrListing, "failed to run ls", err)
	}

	var lines []string
	for _, line := range bytes.Split(out, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, string(line))
		}
	}
	return lines, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (s *sftpSession) Store(localPath, remoteName string, onBytes func(n int64)) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return wrap(ErrTransfer, "failed to open local file", err)
	}
	defer localFile.Close()

	remoteFile, err := s.sftpClient.Create(s.resolve(remoteName))
	if err != nil {
		return wrap(ErrTransfer, "failed to create remote file "+remoteName, err)
	}
	defer remoteFile.Close()

	if _, err := io.Copy(remoteFile, withProgress(localFile, onBytes)); err != nil {
		return wrap(ErrTransfer, "failed to copy data", err)
	}
	return nil
}

func (s *sftpSession) Retrieve(remotePath, localPath string, onBytes func(n int64)) error {
	remoteFile, err := s.sftpClient.Open(s.resolve(remotePath))
	if err != nil {
		return wrap(ErrTransfer, "failed to open remote file "+remotePath, err)
	}
	defer remoteFile.Close()

	localFile, err := os.Create(localPath)
	if err != nil {
		return wrap(ErrTransfer, "failed to create local file", err)
	}
	defer localFile.Close()

	if _, err := io.Copy(localFile, withProgress(remoteFile, onBytes)); err != nil {
		return wrap(ErrTransfer, "failed to copy data", err)
	}
	return nil
}

func (s *sftpSession) FileSize(remotePath string) (int64, error) {
	info, err := s.sftpClient.Stat(s.resolve(remotePath))
	if err != nil {
		return 0, wrap(ErrPath, "failed to stat "+remotePath, err)
	}
	return info.Size(), nil
}

// SetBinary is a no-op: sftp transfers are always byte-exact
func (s *sftpSession) SetBinary() error {
	return nil
}

func (s *sftpSession) Delete(remoteName string) error {
	return wrap(ErrDelete, "failed to delete "+remoteName, s.sftpClient.Remove(s.resolve(remoteName)))
}

func (s *sftpSession) RemoveDir(remoteName string) error {
	return wrap(ErrDelete, "failed to remove directory "+remoteName, s.sftpClient.RemoveDirectory(s.resolve(remoteName)))
}

func (s *sftpSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = errors.Join(s.sftpClient.Close(), s.sshClient.Close())
	})
	return s.closeErr
}

var _ Session = (*sftpSession)(nil)
