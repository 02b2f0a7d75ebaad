package models

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

func (r UserRole) Valid() bool { return r == RoleUser || r == RoleAdmin }

type User struct {
	ID           string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"column:email;type:text;uniqueIndex" json:"email"`
	Name         string    `gorm:"column:name;type:text" json:"name"`
	PasswordHash string    `gorm:"column:password_hash;type:text" json:"-"`
	Role         UserRole  `gorm:"column:role;type:text" json:"role"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Principal is the authenticated caller resolved for one request.
type Principal struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
