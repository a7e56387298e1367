// Package route models a session's position in the dialog graph.
//
// A Path is an immutable, case-normalized sequence of segments such as
// "start.menu.billing". Every operation returns a new Path; nothing mutates in
// place, so a Path can be shared freely between the dispatcher, handlers and
// background tasks.
package route

import (
	"strings"
)

const (
	// Root is the first segment of every normalized path.
	Root = "start"
	// Separator is the default segment separator.
	Separator = "."
)

// Known reports whether a full, normalized path is registered. The route
// table implements it; a Path anchored to a Known set validates Next.
type Known interface {
	Has(path string) bool
}

// Path is a position in the dialog graph.
type Path struct {
	segments []string
	sep      string
	known    Known
}

// Parse builds a Path from a raw route string using the default separator.
// The root segment is prepended when absent, so "" and "choice" become
// "start" and "start.choice".
func Parse(raw string) Path {
	return ParseWith(raw, Separator)
}

// ParseWith is Parse with an explicit separator.
func ParseWith(raw, sep string) Path {
	if sep == "" {
		sep = Separator
	}
	segs := split(raw, sep)
	if len(segs) == 0 || segs[0] != Root {
		segs = append([]string{Root}, segs...)
	}
	return Path{segments: segs, sep: sep}
}

// Normalize returns the canonical string form of a raw route.
func Normalize(raw string) string {
	return Parse(raw).String()
}

// split trims and lower-cases each segment and drops empty ones.
func split(raw, sep string) []string {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(raw)), sep)
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		segs = append(segs, p)
	}
	return segs
}

// Within returns a copy of p whose Next calls are validated against k.
func (p Path) Within(k Known) Path {
	p.known = k
	return p
}

// String joins the segments with the separator.
func (p Path) String() string {
	if len(p.segments) == 0 {
		return Root
	}
	return strings.Join(p.segments, p.separator())
}

func (p Path) separator() string {
	if p.sep == "" {
		return Separator
	}
	return p.sep
}

// Segments returns a copy of the path's segments.
func (p Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// Leaf returns the last segment.
func (p Path) Leaf() string {
	if len(p.segments) == 0 {
		return Root
	}
	return p.segments[len(p.segments)-1]
}

// IsRoot reports whether the path is exactly the root.
func (p Path) IsRoot() bool {
	return len(p.segments) <= 1
}

// Parent drops the last segment. The parent of the root is the root.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return p.with([]string{Root})
	}
	return p.with(p.segments[:len(p.segments)-1])
}

// Dedupe collapses consecutive repeated segments: start.a.a.b -> start.a.b.
func (p Path) Dedupe() Path {
	out := make([]string, 0, len(p.segments))
	for _, s := range p.segments {
		if len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		out = append(out, s)
	}
	return p.with(out)
}

// Next appends part (which may itself contain separators, and may start with
// one, as in ".choice") and checks the result against the owning table.
func (p Path) Next(part string) (Path, error) {
	segs := split(part, p.separator())
	if len(segs) == 0 {
		return Path{}, &NotFoundError{Path: p.String(), Reason: "empty next segment"}
	}
	next := p.with(append(p.Segments(), segs...))
	if p.known != nil && !p.known.Has(next.String()) {
		return Path{}, &NotFoundError{Path: next.String()}
	}
	return next, nil
}

// Previous removes repeated trailing segments left by loop-in-place turns and
// then steps one level up.
func (p Path) Previous() (Path, error) {
	d := p.Dedupe()
	if d.IsRoot() {
		return Path{}, &NotFoundError{Path: d.String(), Reason: "no route before " + Root}
	}
	return d.Parent(), nil
}

// Join appends all segments of other, skipping its root segment.
func (p Path) Join(other Path) Path {
	return p.with(append(p.Segments(), other.segments[1:]...))
}

// Splice applies a target route to p. A target starting at the root replaces
// the path, anything else is appended to it. A blank target fails with
// ErrEmptyTarget.
func (p Path) Splice(target string) (Path, error) {
	segs := split(target, p.separator())
	if len(segs) == 0 {
		return Path{}, ErrEmptyTarget
	}
	if segs[0] == Root {
		return p.with(segs), nil
	}
	return p.with(append(p.Segments(), segs...)), nil
}

// Repeat appends the leaf again, the loop-in-place move used when a handler
// returns nothing.
func (p Path) Repeat() Path {
	return p.with(append(p.Segments(), p.Leaf()))
}

// Equal compares string forms.
func (p Path) Equal(other Path) bool {
	return p.String() == other.String()
}

func (p Path) with(segs []string) Path {
	return Path{segments: segs, sep: p.sep, known: p.known}
}
