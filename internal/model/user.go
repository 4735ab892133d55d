package model

// UserRole is the role carried in the identity token. Accounts themselves live
// in the identity service; this backend only sees {id, role}.
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case Student, Teacher, Admin:
		return true
	}
	return false
}
