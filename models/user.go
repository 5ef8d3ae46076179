package models

import "time"

// User 终端用户（求职者 / 员工 / 雇主）
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	Role      string    `json:"role" gorm:"default:'user'"` // user, employee, employer
	CompanyID *uint     `json:"company_id,omitempty" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) Actor() *Actor {
	return &Actor{
		Ref:       ActorRef{Kind: KindEndUser, ID: u.ID},
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CompanyID: u.CompanyID,
	}
}

// Admin is a support admin. The availability fields are owned by the
// assignment balancer.
type Admin struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Name           string     `json:"name"`
	Email          string     `json:"email" gorm:"uniqueIndex"`
	Role           string     `json:"role" gorm:"default:'admin'"` // admin, super_admin
	Avatar         string     `json:"avatar"`
	IsAvailable    bool       `json:"is_available" gorm:"default:false;index"`
	LastAssignedAt *time.Time `json:"last_assigned_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (a *Admin) Actor() *Actor {
	return &Actor{
		Ref:   ActorRef{Kind: KindSupportAdmin, ID: a.ID},
		Name:  a.Name,
		Email: a.Email,
		Role:  a.Role,
	}
}

// AdminProfile is the public view returned to a user after assignment.
type AdminProfile struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Role   string `json:"role"`
}

func (a *Admin) Profile() *AdminProfile {
	return &AdminProfile{ID: a.ID, Name: a.Name, Email: a.Email, Avatar: a.Avatar, Role: a.Role}
}

// AdminActiveChat 管理员当前负责的会话对象
type AdminActiveChat struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AdminID   uint      `json:"admin_id" gorm:"uniqueIndex:idx_admin_chat_pair"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:idx_admin_chat_pair"`
	CreatedAt time.Time `json:"created_at"`
}

// Employee records are notification recipients only.
type Employee struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    *uint     `json:"user_id,omitempty" gorm:"index"`
	CompanyID uint      `json:"company_id" gorm:"index"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Employee) Actor() *Actor {
	companyID := e.CompanyID
	return &Actor{
		Ref:       ActorRef{Kind: KindEmployee, ID: e.ID},
		Name:      e.Name,
		Email:     e.Email,
		Role:      RoleEmployee,
		CompanyID: &companyID,
	}
}
