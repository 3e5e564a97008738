package handoff

import (
	"strings"
	"unicode"
)

// Marker opens a directive.
const Marker = "[[HA_LOCAL:"

// Class is the classification of one reply.
type Class int

const (
	Undecided Class = iota
	Conversational
	Directive
)

func (c Class) String() string {
	switch c {
	case Undecided:
		return "undecided"
	case Conversational:
		return "conversational"
	case Directive:
		return "directive"
	default:
		return "unknown"
	}
}

// Detector classifies a reply from its leading characters. The zero value
// is ready to use. A Detector must not be reused across replies.
//
// Once the class leaves Undecided it never changes.
type Detector struct {
	buf   strings.Builder
	class Class
}

func (d *Detector) Class() Class {
	return d.class
}

// Feed consumes the next fragment and returns text that may be forwarded
// now. ok is false when nothing is ready.
func (d *Detector) Feed(fragment string) (out string, ok bool) {
	if fragment == "" {
		return "", false
	}
	switch d.class {
	case Conversational:
		return fragment, true
	case Directive:
		d.buf.WriteString(fragment)
		return "", false
	}

	d.buf.WriteString(fragment)
	s := strings.TrimLeftFunc(d.buf.String(), unicode.IsSpace)
	switch {
	case s == "":
		return "", false
	case strings.HasPrefix(s, Marker):
		d.class = Directive
		return "", false
	case strings.HasPrefix(Marker, s):
		// Partial marker split across fragments.
		return "", false
	}
	d.class = Conversational
	out = d.buf.String()
	d.buf.Reset()
	return out, true
}

// Finish marks the end of the reply. For an undecided reply it returns the
// held text verbatim and settles on Conversational. For a directive it
// returns "" and the span stays available from Buffer.
func (d *Detector) Finish() string {
	if d.class != Undecided {
		return ""
	}
	d.class = Conversational
	out := d.buf.String()
	d.buf.Reset()
	return out
}

// Buffer returns the text held back so far.
func (d *Detector) Buffer() string {
	return d.buf.String()
}
