package domain

import "fmt"

// PermissionLevel orders the trust levels a caller can hold. Higher levels
// include the access of lower ones.
type PermissionLevel int

const (
	// LevelPublic is an untrusted client SDK key embedded in a tenant app.
	LevelPublic PermissionLevel = iota
	// LevelServer is a tenant's backend key; may read sensitive columns.
	LevelServer
	// LevelOperator is a platform operator; may additionally run ad-hoc SQL.
	LevelOperator
)

// String returns the wire name of the level.
func (l PermissionLevel) String() string {
	switch l {
	case LevelPublic:
		return "public"
	case LevelServer:
		return "server"
	case LevelOperator:
		return "operator"
	default:
		return fmt.Sprintf("PermissionLevel(%d)", int(l))
	}
}

// ParsePermissionLevel converts a wire name into a PermissionLevel.
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	switch s {
	case "public":
		return LevelPublic, nil
	case "server":
		return LevelServer, nil
	case "operator":
		return LevelOperator, nil
	default:
		return LevelPublic, fmt.Errorf("unknown permission level %q", s)
	}
}

// Principal is the already-authenticated identity attached to a request by
// the upstream auth layer. The gateway never authenticates, only authorizes
// against it.
type Principal struct {
	TenantID string
	Level    PermissionLevel
}
