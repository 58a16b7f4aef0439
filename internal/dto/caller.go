package dto

import "github.com/RaduRoibu23/timetable-distributed-system/internal/model"

// Caller 当前请求的调用者身份，由认证中间件从 Token 中解析
type Caller struct {
	Subject  string
	Username string
	Roles    []string
}

// HasRole 是否拥有任一角色，sysadmin 视为拥有全部角色
func (c *Caller) HasRole(roles ...string) bool {
	if c == nil {
		return false
	}
	for _, have := range c.Roles {
		if have == model.RoleSysadmin {
			return true
		}
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// PrimaryRole 审计日志记录的角色
func (c *Caller) PrimaryRole() string {
	if c == nil || len(c.Roles) == 0 {
		return ""
	}
	return c.Roles[0]
}

// Actor 审计日志记录的操作人
func (c *Caller) Actor() string {
	if c == nil {
		return ""
	}
	if c.Username != "" {
		return c.Username
	}
	return c.Subject
}
