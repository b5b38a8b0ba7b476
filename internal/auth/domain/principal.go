package domain

import "time"

// Principal is the verified identity behind a bearer token.
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Admin marks an email as holding administrator capability. Presence of the
// record is the grant.
type Admin struct {
	Email     string    `json:"email" firestore:"email" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
}

func (Admin) TableName() string { return "admins" }
