package models

// Role is the local permission level of a workspace member, totally ordered
// from owner down to member.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleLeader  Role = "leader"
	RoleMember  Role = "member"
)

var roleRank = map[Role]int{
	RoleOwner:   5,
	RoleAdmin:   4,
	RoleManager: 3,
	RoleLeader:  2,
	RoleMember:  1,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above other. Unknown roles rank
// below every valid role.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}
