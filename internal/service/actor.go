package service

import "edu_assessment_backend/internal/model"

// Actor is the currentUser() collaborator result: who is calling and as what.
type Actor struct {
	ID   uint
	Role model.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.Admin
}

// Owns reports whether the actor may act as the owner of something created
// by ownerID. Admins own everything.
func (a Actor) Owns(ownerID uint) bool {
	return a.IsAdmin() || a.ID == ownerID
}
