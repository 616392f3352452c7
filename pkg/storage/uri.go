package storage

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

type Scheme string

const (
	FileScheme  Scheme = "file"
	S3Scheme    Scheme = "s3"
	HTTPScheme  Scheme = "http"
	HTTPSScheme Scheme = "https"
	// CacheScheme names the process-local in-memory store.
	CacheScheme Scheme = "cache"
)

func knownScheme(s Scheme) bool {
	switch s {
	case FileScheme, S3Scheme, HTTPScheme, HTTPSScheme, CacheScheme:
		return true
	}
	return false
}

type URI url.URL

// ParseURI parses the path using `url.Parse`. If the provided uri does not
// contain a scheme, the scheme is set to file. Relative paths are
// treated as files and resolved as absolute paths using filepath.Abs.
// If path is an empty, a pointer to zero-valued URI is returned.
func ParseURI(path string) (*URI, error) {
	if path == "" {
		return &URI{}, nil
	}
	u, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	if !knownScheme(Scheme(u.Scheme)) {
		// Either no scheme, implying a file, or a file path with an
		// embedded colon.
		return parseBarePath(path)
	}
	return (*URI)(u), nil
}

func MustParseURI(path string) *URI {
	u, err := ParseURI(path)
	if err != nil {
		panic(err)
	}
	return u
}

func parseBarePath(p string) (*URI, error) {
	p, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	return &URI{Scheme: string(FileScheme), Path: filepath.ToSlash(p)}, nil
}

func (u URI) String() string {
	return (*url.URL)(&u).String()
}

func (u *URI) HasScheme(s Scheme) bool {
	return Scheme(u.Scheme) == s
}

// Filepath returns the local file system path of a file URI.
func (u URI) Filepath() string {
	return filepath.FromSlash(u.Path)
}

func (p *URI) AppendPath(elem ...string) *URI {
	u := *p
	for _, el := range elem {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + el
	}
	return &u
}

// Base returns the last element of the receiver's path.
func (u *URI) Base() string {
	return path.Base(u.Path)
}

// Dir returns the receiver with the last element of its path removed.
func (u *URI) Dir() *URI {
	d := *u
	d.Path = path.Dir(u.Path)
	return &d
}

func (u *URI) RelPath(target URI) string {
	prefix := u.Path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.TrimPrefix(target.Path, prefix)
}

func (u *URI) IsZero() bool {
	return *u == URI{}
}

func (u *URI) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *URI) UnmarshalText(b []byte) error {
	uri, err := ParseURI(string(b))
	if err != nil {
		return err
	}
	*u = *uri
	return nil
}
