package mtask

import (
	"fmt"
	"strconv"
	"strings"
)

type CreateTaskRequest struct {
	Name        string `json:"name" binding:"max=200"`
	Description string `json:"description" binding:"max=4000"`
	Category    string `json:"category" binding:"max=120"`
	Status      string `json:"status" binding:"max=60"`
	Time        Offset `json:"time"`
	TimeUnit    string `json:"timeUnit"`
}

// UpdateTaskRequest is a partial patch: nil or empty fields are left as
// they are. Deadline is RFC 3339.
type UpdateTaskRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=200"`
	Description *string `json:"description" binding:"omitempty,max=4000"`
	Category    *string `json:"category" binding:"omitempty,max=120"`
	Status      *string `json:"status" binding:"omitempty,max=60"`
	Deadline    *string `json:"deadline"`
}

// Offset is the relative deadline amount. Clients send it either as a JSON
// number or as a numeric string.
type Offset int

func (o *Offset) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*o = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*o = 0
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("time must be a whole number, got %s", b)
	}
	*o = Offset(n)
	return nil
}
