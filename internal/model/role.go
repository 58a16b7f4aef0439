package model

// 角色名称，与 IdP 签发的角色声明一致
const (
	RoleScheduler   = "scheduler"
	RoleSecretariat = "secretariat"
	RoleAdmin       = "admin"
	RoleSysadmin    = "sysadmin"
	RoleProfessor   = "professor"
)
