package dto

import "time"

type CheckAllowlistRequest struct {
	Email string `json:"email" binding:"required"`
}

type CheckAllowlistResponse struct {
	Approved       bool `json:"approved"`
	IsExistingUser bool `json:"isExistingUser"`
}

const (
	EntryEmail  = "email"
	EntryDomain = "domain"
)

type ManageAllowlistRequest struct {
	Type  string `json:"type" binding:"required"`
	Value string `json:"value" binding:"required"`
}

type ManageAllowlistResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type AllowlistResponse struct {
	Domains []DomainView `json:"domains"`
}

type DomainView struct {
	ID     string      `json:"id"`
	Domain string      `json:"domain"`
	Emails []EmailView `json:"emails"`
}

// EmailView joins a listed address with its profile, when one exists.
type EmailView struct {
	Email      string     `json:"email"`
	Subscribed bool       `json:"subscribed"`
	LastLogin  *time.Time `json:"last_login"`
	CreatedAt  *time.Time `json:"created_at"`
}

type CreateUserResponse struct {
	OK bool `json:"ok"`
}
