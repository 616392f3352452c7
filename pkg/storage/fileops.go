package storage

import (
	"context"
	"path"
	"strings"

	"github.com/brimdata/zframe/zqe"
)

// FileStatus classifies a path.  The helpers in this file report failures
// as status values and booleans rather than errors so that callers decide
// how to treat unreachable backends.
type FileStatus int

const (
	StatusUnavailable FileStatus = iota
	StatusMissing
	StatusFile
	StatusDirectory
)

func (s FileStatus) String() string {
	switch s {
	case StatusMissing:
		return "missing"
	case StatusFile:
		return "file"
	case StatusDirectory:
		return "directory"
	}
	return "unavailable"
}

// Status returns the FileStatus of u.
func Status(ctx context.Context, engine Engine, u *URI) FileStatus {
	if s, ok := engine.(Stater); ok {
		info, err := s.Stat(ctx, u)
		switch {
		case zqe.IsNotFound(err):
			return StatusMissing
		case err != nil:
			return StatusUnavailable
		case info.IsDir:
			return StatusDirectory
		}
		return StatusFile
	}
	ok, err := engine.Exists(ctx, u)
	switch {
	case err != nil:
		return StatusUnavailable
	case ok:
		return StatusFile
	}
	if _, err := engine.List(ctx, u); err == nil {
		return StatusDirectory
	}
	return StatusMissing
}

// ListDirectory returns the children of u and whether each is a directory.
// It returns nil when u cannot be listed.
func ListDirectory(ctx context.Context, engine Engine, u *URI) []Info {
	infos, err := engine.List(ctx, u)
	if err != nil {
		return nil
	}
	return infos
}

// CreateDirectory creates u and any missing parents.  Engines without
// explicit directories always succeed.
func CreateDirectory(ctx context.Context, engine Engine, u *URI) bool {
	if dm, ok := engine.(DirMaker); ok {
		return dm.MkdirAll(ctx, u) == nil
	}
	return true
}

// DeletePath deletes the single object at u.
func DeletePath(ctx context.Context, engine Engine, u *URI) bool {
	return engine.Delete(ctx, u) == nil
}

// DeletePathRecursive deletes u and everything beneath it.
func DeletePathRecursive(ctx context.Context, engine Engine, u *URI) bool {
	return engine.DeleteByPrefix(ctx, u) == nil
}

// CanonicalURI cleans the path of u, resolving "." and ".." elements and
// removing any trailing slash.  Bare paths become absolute file URIs.
func CanonicalURI(s string) (*URI, error) {
	u, err := ParseURI(s)
	if err != nil {
		return nil, err
	}
	if u.IsZero() {
		return u, nil
	}
	if u.Path != "" {
		u.Path = path.Clean(u.Path)
		if u.Path == "." {
			u.Path = "/"
		}
	}
	u.RawPath = ""
	return u, nil
}

// Glob expands a single-level wildcard pattern in the last path element of
// pattern, as in "/data/part-*.csv".  A pattern without wildcards is
// returned as is when it exists.
func Glob(ctx context.Context, engine Engine, pattern *URI) ([]*URI, error) {
	base := pattern.Base()
	if !strings.ContainsAny(base, "*?[") {
		ok, err := engine.Exists(ctx, pattern)
		if err != nil || !ok {
			return nil, err
		}
		return []*URI{pattern}, nil
	}
	if _, err := path.Match(base, ""); err != nil {
		return nil, zqe.E(zqe.Invalid, err)
	}
	dir := pattern.Dir()
	infos, err := engine.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	var out []*URI
	for _, info := range infos {
		if info.IsDir {
			continue
		}
		if ok, _ := path.Match(base, info.Name); ok {
			out = append(out, dir.AppendPath(info.Name))
		}
	}
	return out, nil
}
