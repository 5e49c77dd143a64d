package models

import "time"

type UserRole string

const (
	RoleStudent   UserRole = "student"
	RoleTeacher   UserRole = "teacher"
	RoleEvaluator UserRole = "evaluator"
	RoleAdmin     UserRole = "admin"
)

// User is a thin projection of the external identity provider's record;
// permission decisions come from the security service, not from rows here.
type User struct {
	ID       string   `json:"id" gorm:"primaryKey;size:255"`
	FullName string   `json:"full_name" gorm:"size:100"`
	Email    string   `json:"email" gorm:"size:255"`
	Role     UserRole `json:"role" gorm:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
