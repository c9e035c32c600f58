package backend

import (
	"fmt"
)

// Kind identifies which physical store a backend is bound to
type Kind int

const (
	// Unavailable backends are bound to no store at all
	Unavailable Kind = iota
	// Persistent backends survive process restarts
	Persistent
	// Session backends live as long as their environment
	Session
	// Ephemeral backends live in process memory
	Ephemeral
)

var kindNames = map[Kind]string{
	Unavailable: "unavailable",
	Persistent:  "persistent",
	Session:     "session",
	Ephemeral:   "ephemeral",
}

func (kind Kind) String() string {
	if name, ok := kindNames[kind]; ok {
		return name
	}

	return fmt.Sprintf("Kind(%d)", int(kind))
}

// ParseKind is the inverse of Kind.String
func ParseKind(name string) (Kind, error) {
	for kind, kindName := range kindNames {
		if kindName == name {
			return kind, nil
		}
	}

	return Unavailable, fmt.Errorf("unknown backend kind %q", name)
}

// FallbackReason records why a backend is not bound to the store
// that was requested
type FallbackReason int

const (
	// FallbackNone means the requested store was bound
	FallbackNone FallbackReason = iota
	// FallbackEnvironment means the environment does not provide
	// the requested store. This is expected and is not a failure.
	FallbackEnvironment
	// FallbackAccessDenied means the requested store exists but
	// could not be opened
	FallbackAccessDenied
)

func (reason FallbackReason) String() string {
	switch reason {
	case FallbackNone:
		return "none"
	case FallbackEnvironment:
		return "environment"
	case FallbackAccessDenied:
		return "access-denied"
	}

	return fmt.Sprintf("FallbackReason(%d)", int(reason))
}
