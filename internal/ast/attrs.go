package ast

// Role tags the structural purpose of a symbol created by lowering.
type Role int

const (
	RoleNone Role = iota
	RolePipelineIn
	RolePipelineOut
	RolePipelineLocal
	RoleInterconnect
	RoleLifted
	RoleStackStorage
)

func (r Role) String() string {
	switch r {
	case RolePipelineIn:
		return "pipeline-in"
	case RolePipelineOut:
		return "pipeline-out"
	case RolePipelineLocal:
		return "pipeline-local"
	case RoleInterconnect:
		return "interconnect"
	case RoleLifted:
		return "lifted"
	case RoleStackStorage:
		return "stack-storage"
	default:
		return "none"
	}
}

// Attributes is the sideband record kept per symbol by the compilation
// context. Every field is optional.
type Attributes struct {
	// Init is the initializer of a constant or variable.
	Init Expr
	// Role is the structural role of a synthesized symbol.
	Role Role
	// LiftedFrom is the outer symbol a lifted port or constant aliases.
	LiftedFrom *Symbol
	// Interconnect maps stack port names to the variables driving or
	// observing them in the owning entity.
	Interconnect map[string]*Symbol
}
