// Package canvas implements the Canvas LMS REST API client.
// It fetches courses, enrolled students, group sets, groups and their
// members, and exposes them through roster.CourseSource.
package canvas

import "strings"

// ══════════════════════════════════════════════════════════════════════════════
// COURSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// CourseDTO is a course as returned by GET /api/v1/courses/:id.
type CourseDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	CourseCode    string `json:"course_code,omitempty"`
	WorkflowState string `json:"workflow_state,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// USER DTOs
// ══════════════════════════════════════════════════════════════════════════════

// UserDTO is a course user. Canvas omits fields the token may not read, so
// every identity attribute is optional.
type UserDTO struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name,omitempty"`
	SortableName string  `json:"sortable_name,omitempty"`
	ShortName    *string `json:"short_name,omitempty"`
	Email        *string `json:"email,omitempty"`
	LoginID      *string `json:"login_id,omitempty"`
	SISUserID    *string `json:"sis_user_id,omitempty"`
}

// EnrollmentDTO is one enrollment of a user in a course.
type EnrollmentDTO struct {
	ID              int64  `json:"id"`
	UserID          int64  `json:"user_id"`
	CourseID        int64  `json:"course_id"`
	Type            string `json:"type"`
	Role            string `json:"role,omitempty"`
	EnrollmentState string `json:"enrollment_state,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUP DTOs
// ══════════════════════════════════════════════════════════════════════════════

// GroupCategoryDTO is a group set of a course.
type GroupCategoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GroupDTO is one group of a course.
type GroupDTO struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	GroupCategoryID int64  `json:"group_category_id"`
	MaxMembership   *int   `json:"max_membership"`
	MembersCount    int    `json:"members_count"`
}

// GroupMembershipDTO links a user to a group.
type GroupMembershipDTO struct {
	ID            int64  `json:"id"`
	GroupID       int64  `json:"group_id"`
	UserID        int64  `json:"user_id"`
	WorkflowState string `json:"workflow_state,omitempty"`
	Moderator     bool   `json:"moderator,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR DTOs
// ══════════════════════════════════════════════════════════════════════════════

// ErrorResponseDTO is the error body Canvas sends with 4xx responses.
type ErrorResponseDTO struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Message joins all error messages of the response.
func (e *ErrorResponseDTO) Message() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, m := range e.Errors {
		if m.Message != "" {
			msgs = append(msgs, m.Message)
		}
	}
	return strings.Join(msgs, "; ")
}
