package dto

import updatedomain "investor-portal/internal/update/domain"

type SendUpdateRequest struct {
	Title     string `json:"title"`
	ContentMD string `json:"content_md"`
}

type FailedRecipient struct {
	Email string `json:"email"`
	Error string `json:"error,omitempty"`
}

type SendUpdateResponse struct {
	OK               bool              `json:"ok"`
	UpdateID         string            `json:"updateId,omitempty"`
	Recipients       int               `json:"recipients"`
	Sent             int               `json:"sent"`
	Failed           int               `json:"failed"`
	FailedRecipients []FailedRecipient `json:"failedRecipients,omitempty"`
	Message          string            `json:"message,omitempty"`
}

// SendUpdateFailure is the body returned when no recipient received the update.
type SendUpdateFailure struct {
	Error   string            `json:"error"`
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Details []FailedRecipient `json:"details,omitempty"`
	Sent    int               `json:"sent"`
	Failed  int               `json:"failed"`
}

type UpdatesResponse struct {
	Updates []*updatedomain.Update `json:"updates"`
}
