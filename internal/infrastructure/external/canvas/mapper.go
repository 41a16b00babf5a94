package canvas

import (
	"golang.org/x/text/unicode/norm"

	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to domain transformations
// ══════════════════════════════════════════════════════════════════════════════

// Mapper turns Canvas DTOs into roster values. Names and emails are
// converted to Unicode NFC so that the same student always renders to the
// same bytes, whatever form the LMS stored.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// CourseFromDTO converts a CourseDTO.
func (m *Mapper) CourseFromDTO(dto *CourseDTO) roster.Course {
	return roster.Course{ID: dto.ID, Name: norm.NFC.String(dto.Name)}
}

// StudentFromDTO converts a UserDTO. Absent attributes stay nil.
func (m *Mapper) StudentFromDTO(dto *UserDTO) roster.RawStudent {
	return roster.RawStudent{
		ID:        dto.ID,
		Email:     nfc(dto.Email),
		ShortName: nfc(dto.ShortName),
		LoginID:   nfc(dto.LoginID),
		SISUserID: dto.SISUserID,
	}
}

// StudentsFromDTOs converts a page of users, preserving order.
func (m *Mapper) StudentsFromDTOs(dtos []UserDTO) []roster.RawStudent {
	out := make([]roster.RawStudent, len(dtos))
	for i := range dtos {
		out[i] = m.StudentFromDTO(&dtos[i])
	}
	return out
}

// MembershipFromDTO converts the group a user belongs to.
func (m *Mapper) MembershipFromDTO(dto *GroupDTO) roster.Membership {
	limit := 0
	if dto.MaxMembership != nil {
		limit = *dto.MaxMembership
	}
	return roster.Membership{GroupName: norm.NFC.String(dto.Name), MaxMembership: limit}
}

// RolesFromDTOs maps user id to enrollment type. A user enrolled more than
// once keeps the student enrollment if there is one.
func (m *Mapper) RolesFromDTOs(dtos []EnrollmentDTO) map[int64]string {
	roles := make(map[int64]string, len(dtos))
	for _, e := range dtos {
		if roles[e.UserID] == roster.RoleStudent {
			continue
		}
		roles[e.UserID] = e.Type
	}
	return roles
}

func nfc(s *string) *string {
	if s == nil {
		return nil
	}
	v := norm.NFC.String(*s)
	return &v
}
