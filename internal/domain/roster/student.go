package roster

import "strings"

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

// RoleStudent is the enrollment role of an active learner. Records with any
// other role (teachers, TAs, observers) are not exported.
const RoleStudent = "StudentEnrollment"

// DefaultEmailDomain is the institutional email suffix stripped from student
// emails to get the name part.
const DefaultEmailDomain = "@student.tue.nl"

// ══════════════════════════════════════════════════════════════════════════════
// RAW INPUT
// ══════════════════════════════════════════════════════════════════════════════

// RawStudent is a student record as delivered by the course data source.
// Every attribute except the ID may be absent.
type RawStudent struct {
	ID        int64   `json:"id"`
	Email     *string `json:"email,omitempty"`
	ShortName *string `json:"short_name,omitempty"`
	LoginID   *string `json:"login_id,omitempty"`
	SISUserID *string `json:"sis_user_id,omitempty"`
}

// Membership is the group a user belongs to, together with the group's
// declared maximum size. MaxMembership is 0 when the group has no limit.
type Membership struct {
	GroupName     string `json:"group_name"`
	MaxMembership int    `json:"max_membership"`
}

// GroupSizes collects the declared maximum size per group name.
func GroupSizes(memberships map[int64]Membership) map[string]int {
	sizes := make(map[string]int, len(memberships))
	for _, m := range memberships {
		if m.GroupName == "" {
			continue
		}
		if cur, ok := sizes[m.GroupName]; !ok || m.MaxMembership > cur {
			sizes[m.GroupName] = m.MaxMembership
		}
	}
	return sizes
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT RECORD
// ══════════════════════════════════════════════════════════════════════════════

// StudentRecord is a normalized roster row. Missing attributes are "".
type StudentRecord struct {
	Group       string
	DisplayName string
	FullName    string
	LoginID     string
	ExternalID  string
	Email       string
}

// HasGroup reports whether the student is a member of any group.
func (s StudentRecord) HasGroup() bool {
	return s.Group != ""
}

// Normalize turns raw students into roster rows.
//
// Only records whose role is RoleStudent are kept; a record without a role
// entry is dropped. A nil roles map means the source has no enrollment data,
// in which case nothing is dropped. The output keeps the input order.
func Normalize(raw []RawStudent, memberships map[int64]Membership, roles map[int64]string, emailDomain string) []StudentRecord {
	records := make([]StudentRecord, 0, len(raw))

	for _, r := range raw {
		if roles != nil && roles[r.ID] != RoleStudent {
			continue
		}

		email := deref(r.Email)
		records = append(records, StudentRecord{
			Group:       memberships[r.ID].GroupName,
			DisplayName: DisplayName(email, emailDomain),
			FullName:    deref(r.ShortName),
			LoginID:     deref(r.LoginID),
			ExternalID:  deref(r.SISUserID),
			Email:       email,
		})
	}

	return records
}

// LocalPart returns the part of email in front of the domain suffix. When the
// email does not end in domain it falls back to everything before the last "@".
func LocalPart(email, domain string) string {
	if domain != "" && strings.HasSuffix(email, domain) {
		return strings.TrimSuffix(email, domain)
	}
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// DisplayName returns the local part of email up to the first ".".
func DisplayName(email, domain string) string {
	local := LocalPart(email, domain)
	if i := strings.Index(local, "."); i >= 0 {
		return local[:i]
	}
	return local
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
