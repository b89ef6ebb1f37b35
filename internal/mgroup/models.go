package mgroup

import (
	"strings"
	"time"
)

const (
	statusActive      = "Active"
	taskStatusPending = "pending"
)

type CreateGroupRequest struct {
	Name    string   `json:"name" binding:"max=120"`
	Members []string `json:"members" binding:"max=500"`
}

type AddMemberRequest struct {
	UserID string `json:"userId"`
}

type CreateGroupTaskRequest struct {
	Title       string `json:"title" binding:"max=200"`
	Description string `json:"description" binding:"max=4000"`
	DueDate     string `json:"dueDate"`
	AssignedTo  string `json:"assignedTo"`
}

type UpdateStatusRequest struct {
	Status    string `json:"status" binding:"max=60"`
	UpdatedBy string `json:"updatedBy"`
}

// parseDueDate accepts an RFC 3339 timestamp or a bare yyyy-mm-dd date.
func parseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
