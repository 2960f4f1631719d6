package enums

// ActorRole distinguishes callers on the HTTP surface: the order pipeline's
// service account and human operators.
type ActorRole string

const (
	ActorRoleService ActorRole = "service"
	ActorRoleAdmin   ActorRole = "admin"
)

var validActorRoles = []ActorRole{
	ActorRoleService,
	ActorRoleAdmin,
}

// IsValid reports whether the role is a known value.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if r == candidate {
			return true
		}
	}
	return false
}
