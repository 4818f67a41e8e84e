package models

// Role 是聊天室中的兩種角色
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Valid 檢查角色是否為 admin 或 client
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClient
}

// Counterpart 回傳對方的角色
func (r Role) Counterpart() Role {
	if r == RoleAdmin {
		return RoleClient
	}
	return RoleAdmin
}
