package domain

import "fmt"

// Role 操作者角色
type Role string

const (
	RoleCustomer      Role = "customer"
	RoleOperator      Role = "operator"
	RoleAdministrator Role = "administrator"
	RoleATM           Role = "atm"
	RoleSystem        Role = "system"
)

// Actor 已通過上游驗證的操作者，每次呼叫明確傳入 (不使用全域 session)
type Actor struct {
	UserID int64
	Role   Role
}

// SystemActor 背景排程 (例如到期結清) 使用的身分
var SystemActor = Actor{UserID: 0, Role: RoleSystem}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%d", a.Role, a.UserID)
}
