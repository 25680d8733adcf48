package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"

	"github.com/quocson95/ftpfleet/pkg/listing"
	"github.com/quocson95/ftpfleet/pkg/storage"
)

const modifyLayout = "20060102150405"

// ftpSession drives a plain FTP control connection
type ftpSession struct {
	conn *ftp.ServerConn
	tap  *dataTap
	log  zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// DialFTP connects and logs in to an FTP endpoint
func DialFTP(ctx context.Context, p storage.Profile, opts Options, log zerolog.Logger) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(ErrConnect, "failed to connect", err)
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	tap := &dataTap{}
	dialOpts := []ftp.DialOption{
		// used for the control connection and for every data connection
		ftp.DialWithDialFunc(func(network, address string) (net.Conn, error) {
			c, err := dialer.DialContext(ctx, network, address)
			if err != nil {
				return nil, err
			}
			return tap.wrap(newDeadlineConn(c, opts.TransferTimeout)), nil
		}),
	}
	if !p.PassiveMode {
		// the client has no PORT support; plain PASV is the closest it gets
		log.Warn().Msg("active mode is not supported, using PASV")
		dialOpts = append(dialOpts, ftp.DialWithDisabledEPSV(true))
	}

	conn, err := ftp.Dial(p.Address(), dialOpts...)
	if err != nil {
		return nil, wrap(ErrConnect, "failed to connect to "+p.Address(), err)
	}

	if err := conn.Login(p.Username, p.Password); err != nil {
		_ = conn.Quit()
		if isAuthReply(err) {
			return nil, wrap(ErrAuth, "failed to log in as "+p.Username, err)
		}
		return nil, wrap(ErrConnect, "failed to log in as "+p.Username, err)
	}

	log.Debug().Str("addr", p.Address()).Msg("ftp session opened")
	return &ftpSession{conn: conn, tap: tap, log: log}, nil
}

func isAuthReply(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code == ftp.StatusNotLoggedIn
	}
	return false
}

func (s *ftpSession) EnsureDir(path string) error {
	return EnsureDir(s, path)
}

func (s *ftpSession) ChangeDir(path string) error {
	return wrap(ErrPath, "failed to change directory to "+path, s.conn.ChangeDir(path))
}

func (s *ftpSession) CurrentDir() (string, error) {
	dir, err := s.conn.CurrentDir()
	if err != nil {
		return "", wrap(ErrPath, "failed to get current directory", err)
	}
	return dir, nil
}

func (s *ftpSession) MakeDir(name string) error {
	return wrap(ErrPath, "failed to create directory "+name, s.conn.MakeDir(name))
}

// ListFacts runs MLSD and maps the entries to fact records. Servers that did
// not advertise MLST get ErrUnsupported so callers fall back to ListLines.
func (s *ftpSession) ListFacts() ([]listing.Record, error) {
	if !s.conn.IsTimePreciseInList() {
		return nil, wrap(ErrListing, "MLSD not advertised", errors.ErrUnsupported)
	}
	entries, err := s.conn.List("")
	if err != nil {
		return nil, wrap(ErrListing, "failed to list directory", err)
	}

	records := make([]listing.Record, 0, len(entries))
	for _, e := range entries {
		facts := map[string]string{"type": entryType(e.Type)}
		if e.Type == ftp.EntryTypeFile {
			facts["size"] = strconv.FormatUint(e.Size, 10)
		}
		if !e.Time.IsZero() {
			facts["modify"] = e.Time.UTC().Format(modifyLayout)
		}
		records = append(records, listing.Record{Name: e.Name, Facts: facts})
	}
	return records, nil
}

func entryType(t ftp.EntryType) string {
	switch t {
	case ftp.EntryTypeFolder:
		return "dir"
	case ftp.EntryTypeLink:
		return "OS.unix=symlink"
	default:
		return "file"
	}
}

// ListLines runs LIST and returns the raw lines of the data stream. The
// client parses LIST itself and drops what it cannot read, so the bytes are
// taken from the data connection instead of from its entries.
func (s *ftpSession) ListLines() ([]string, error) {
	s.tap.start()
	_, err := s.conn.List("")
	raw := s.tap.stop()
	if err != nil {
		return nil, wrap(ErrListing, "failed to run LIST", err)
	}

	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (s *ftpSession) Store(localPath, remoteName string, onBytes func(n int64)) error {
	f, err := os.Open(localPath)
	if err != nil {
		return wrap(ErrTransfer, "failed to open local file", err)
	}
	defer f.Close()

	if err := s.conn.Stor(remoteName, withProgress(f, onBytes)); err != nil {
		return wrap(ErrTransfer, "failed to store "+remoteName, err)
	}
	return nil
}

func (s *ftpSession) Retrieve(remotePath, localPath string, onBytes func(n int64)) (err error) {
	resp, err := s.conn.Retr(remotePath)
	if err != nil {
		return wrap(ErrTransfer, "failed to retrieve "+remotePath, err)
	}
	defer func() {
		if cerr := resp.Close(); cerr != nil && err == nil {
			err = wrap(ErrTransfer, "failed to finish retrieving "+remotePath, cerr)
		}
	}()

	f, err := os.Create(localPath)
	if err != nil {
		return wrap(ErrTransfer, "failed to create local file", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, withProgress(resp, onBytes)); err != nil {
		return wrap(ErrTransfer, "failed to copy data", err)
	}
	return nil
}

func (s *ftpSession) FileSize(remotePath string) (int64, error) {
	size, err := s.conn.FileSize(remotePath)
	if err != nil {
		return 0, wrap(ErrPath, "failed to get size of "+remotePath, err)
	}
	return size, nil
}

func (s *ftpSession) SetBinary() error {
	return wrap(ErrTransfer, "failed to set binary mode", s.conn.Type(ftp.TransferTypeBinary))
}

func (s *ftpSession) Delete(remoteName string) error {
	return wrap(ErrDelete, "failed to delete "+remoteName, s.conn.Delete(remoteName))
}

func (s *ftpSession) RemoveDir(remoteName string) error {
	return wrap(ErrDelete, "failed to remove directory "+remoteName, s.conn.RemoveDir(remoteName))
}

func (s *ftpSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Quit()
		if s.closeErr != nil {
			s.closeErr = fmt.Errorf("failed to quit: %w", s.closeErr)
		}
	})
	return s.closeErr
}

var _ Session = (*ftpSession)(nil)
