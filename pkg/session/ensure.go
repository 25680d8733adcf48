package session

import "strings"

// Navigator is the subset of Session that EnsureDir needs
type Navigator interface {
	ChangeDir(path string) error
	MakeDir(name string) error
}

// EnsureDir walks path segment by segment. Each segment is entered if it
// exists and created then entered otherwise, so an existing directory is never
// an error. A leading slash starts from the root; "" and "/" do nothing.
func EnsureDir(nav Navigator, path string) error {
	path = strings.ReplaceAll(path, `\`, "/")
	if path == "" || path == "/" {
		return nil
	}

	if strings.HasPrefix(path, "/") {
		if err := nav.ChangeDir("/"); err != nil {
			return wrap(ErrPath, "failed to change to root", err)
		}
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if err := nav.ChangeDir(seg); err == nil {
			continue
		}
		if err := nav.MakeDir(seg); err != nil {
			return wrap(ErrPath, "failed to create directory "+seg, err)
		}
		if err := nav.ChangeDir(seg); err != nil {
			return wrap(ErrPath, "failed to enter directory "+seg, err)
		}
	}
	return nil
}
