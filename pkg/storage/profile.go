package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// ProtocolFTP is the default endpoint protocol
	ProtocolFTP = "ftp"
	// ProtocolSFTP selects the SSH file transfer backend
	ProtocolSFTP = "sftp"

	DefaultPort     = 21
	DefaultUsername = "anonymous"
)

// Record is the persisted shape of an endpoint profile
type Record struct {
	Name        string `json:"name"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	PassiveMode bool   `json:"passive_mode"`
	RemoteDir   string `json:"remote_dir"`
	Enabled     bool   `json:"enabled"`
	Protocol    string `json:"protocol,omitempty"`
}

// UnmarshalJSON fills absent keys with their defaults. An explicit "ftp"
// protocol is stored as absent, the same way ToRecord writes it.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	p := plain{
		Port:        DefaultPort,
		Username:    DefaultUsername,
		PassiveMode: true,
		Enabled:     true,
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(p.Protocol), ProtocolFTP) {
		p.Protocol = ""
	}
	*r = Record(p)
	return nil
}

// Profile describes one remote endpoint
type Profile struct {
	Host          string
	Port          int
	Username      string
	Password      string
	DisplayName   string
	PassiveMode   bool
	RemoteBaseDir string
	Enabled       bool
	Protocol      string
}

// NewProfile creates a profile with the record defaults applied
func NewProfile(host string) Profile {
	return Profile{
		Host:        host,
		Port:        DefaultPort,
		Username:    DefaultUsername,
		DisplayName: host,
		PassiveMode: true,
		Enabled:     true,
		Protocol:    ProtocolFTP,
	}
}

// FromRecord converts a persisted record into a profile
func FromRecord(r Record) Profile {
	p := Profile{
		Host:          r.Host,
		Port:          r.Port,
		Username:      r.Username,
		Password:      r.Password,
		DisplayName:   r.Name,
		PassiveMode:   r.PassiveMode,
		RemoteBaseDir: r.RemoteDir,
		Enabled:       r.Enabled,
		Protocol:      r.Protocol,
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Host
	}
	if p.Protocol == "" {
		p.Protocol = ProtocolFTP
	}
	return p
}

// ToRecord converts a profile into its persisted shape
func (p Profile) ToRecord() Record {
	r := Record{
		Name:        p.DisplayName,
		Host:        p.Host,
		Port:        p.Port,
		Username:    p.Username,
		Password:    p.Password,
		PassiveMode: p.PassiveMode,
		RemoteDir:   p.RemoteBaseDir,
		Enabled:     p.Enabled,
	}
	if p.Protocol != ProtocolFTP {
		r.Protocol = p.Protocol
	}
	return r
}

// Validate checks if the profile can be used to open a session
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Host) == "" {
		return errors.New("host is required")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", p.Port)
	}
	switch p.Protocol {
	case "", ProtocolFTP, ProtocolSFTP:
	default:
		return fmt.Errorf("unsupported protocol: %s", p.Protocol)
	}
	return nil
}

// Address returns host:port
func (p Profile) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// EndpointID identifies the endpoint a profile points at
func (p Profile) EndpointID() string {
	return fmt.Sprintf("%s://%s@%s:%d", p.protocol(), p.Username, p.Host, p.Port)
}

// TargetDir resolves the directory a distribution job uploads into
func (p Profile) TargetDir(defaultDir string) string {
	if dir := strings.TrimSpace(p.RemoteBaseDir); dir != "" {
		return dir
	}
	return defaultDir
}

func (p Profile) protocol() string {
	if p.Protocol == "" {
		return ProtocolFTP
	}
	return p.Protocol
}
