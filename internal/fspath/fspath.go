// Package fspath provides canonical handling of virtual filesystem paths.
//
// Every path in the file tree is absolute, '/'-separated and cleaned; the
// root is "/". The GitHub contents API uses the same strings without the
// leading slash (see ForRemote).
package fspath

import (
	gopath "path"
	"strings"
)

// Clean canonicalizes p into an absolute virtual path.
func Clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return gopath.Clean(p)
}

// Join joins parent and name into a cleaned absolute path.
func Join(parent, name string) string {
	return Clean(gopath.Join(Clean(parent), name))
}

// Name returns the leaf name of p, or "" for the root.
func Name(p string) string {
	p = Clean(p)
	if p == "/" {
		return ""
	}
	return gopath.Base(p)
}

// Parent returns the parent path of p. The root is its own parent.
func Parent(p string) string {
	p = Clean(p)
	if p == "/" {
		return "/"
	}
	return gopath.Dir(p)
}

// Depth returns the number of segments in p; the root has depth 0.
func Depth(p string) int {
	p = Clean(p)
	if p == "/" {
		return 0
	}
	return strings.Count(p, "/")
}

// Ancestors returns every strict ancestor of p below the root, shallowest
// first. For "/a/b/c" it returns ["/a", "/a/b"].
func Ancestors(p string) []string {
	p = Clean(p)
	if p == "/" {
		return nil
	}
	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if len(segs) < 2 {
		return nil
	}
	out := make([]string, 0, len(segs)-1)
	cur := ""
	for _, s := range segs[:len(segs)-1] {
		cur += "/" + s
		out = append(out, cur)
	}
	return out
}

// ForRemote converts a virtual path to the form the contents API expects:
// relative, no leading slash.
func ForRemote(p string) string {
	return strings.TrimPrefix(Clean(p), "/")
}
