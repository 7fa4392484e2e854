// Package navigation reconciles authentication state with the displayed route group.
//
// [Decide] is the whole policy and is pure. [Guard] wires it to a state
// reader and a [Router], re-evaluating whenever either input changes.
//
// # Invariants
//
//   - Nothing happens until the state is loaded.
//   - A placement that already matches the state never produces a redirect,
//     so re-evaluation cannot loop or flicker.
package navigation

import "strings"

// RouteGroup is the coarse classification of the active screen.
type RouteGroup uint8

const (
	// GroupOther is any route outside the auth and protected groups.
	GroupOther RouteGroup = iota
	// GroupAuth holds the sign-in and sign-up screens.
	GroupAuth
	// GroupProtected holds everything behind authentication.
	GroupProtected
)

func (g RouteGroup) String() string {
	switch g {
	case GroupAuth:
		return "auth"
	case GroupProtected:
		return "protected"
	default:
		return "other"
	}
}

// Canonical paths used by redirects.
const (
	ProtectedRoot = "/(tabs)"
	SignInPath    = "/sign-in"
	SignUpPath    = "/sign-up"

	authSegment      = "(auth)"
	protectedSegment = "(tabs)"
)

// ActionKind tells the caller what to do with a decision.
type ActionKind uint8

const (
	// ActionNone leaves the current route untouched.
	ActionNone ActionKind = iota
	// ActionRedirect replaces the current route with Action.Path.
	ActionRedirect
)

// Action is the outcome of Decide.
type Action struct {
	Kind ActionKind
	Path string
}

// Redirect reports whether the action replaces the current route.
func (a Action) Redirect() bool {
	return a.Kind == ActionRedirect
}

// Decide maps (loaded, signedIn, group) to the navigation action.
func Decide(loaded, signedIn bool, group RouteGroup) Action {
	switch {
	case !loaded:
		return Action{Kind: ActionNone}
	case signedIn && group != GroupProtected:
		return Action{Kind: ActionRedirect, Path: ProtectedRoot}
	case !signedIn && group != GroupAuth:
		return Action{Kind: ActionRedirect, Path: SignInPath}
	default:
		return Action{Kind: ActionNone}
	}
}

// Classify derives the route group from the first segment of path. Auth screens
// may be addressed either through the "(auth)" group segment or directly.
func Classify(path string) RouteGroup {
	trimmed := strings.TrimPrefix(strings.TrimSpace(path), "/")
	first := trimmed
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		first = trimmed[:idx]
	}

	switch first {
	case authSegment, strings.TrimPrefix(SignInPath, "/"), strings.TrimPrefix(SignUpPath, "/"):
		return GroupAuth
	case protectedSegment:
		return GroupProtected
	default:
		return GroupOther
	}
}
