package roster

import (
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY MODE
// ══════════════════════════════════════════════════════════════════════════════

// IdentityMode selects how a member is written to the manifest.
type IdentityMode int

const (
	// IdentityEmail writes the email address.
	IdentityEmail IdentityMode = iota
	// IdentityExternalID writes the external (git) id.
	IdentityExternalID
	// IdentityBoth writes "(email, external_id)".
	IdentityBoth
)

// Settings values accepted for the identity mode.
const (
	MemberOptionEmail = "email"
	MemberOptionGitID = "gitid"
	MemberOptionBoth  = "(email, gitid)"
)

// ParseIdentityMode parses a member option from settings.
func ParseIdentityMode(s string) (IdentityMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case MemberOptionEmail, "":
		return IdentityEmail, nil
	case MemberOptionGitID, "git_id", "external_id", "id":
		return IdentityExternalID, nil
	case MemberOptionBoth, "both":
		return IdentityBoth, nil
	default:
		return IdentityEmail, fmt.Errorf("unknown member option %q", s)
	}
}

// String returns the settings value of the mode.
func (m IdentityMode) String() string {
	switch m {
	case IdentityExternalID:
		return MemberOptionGitID
	case IdentityBoth:
		return MemberOptionBoth
	default:
		return MemberOptionEmail
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RENDERING
// ══════════════════════════════════════════════════════════════════════════════

// RenderConfig controls team labels and member identities.
type RenderConfig struct {
	IdentityMode       IdentityMode
	IncludeGroupName   bool
	IncludeMemberNames bool
	IncludeInitials    bool
	OnlyFullGroups     bool

	// MinGroupSize drops teams with fewer members. 0 disables the check.
	MinGroupSize int

	// EmailDomain is stripped from member emails before building name tokens.
	EmailDomain string
}

// HasLabel reports whether the configuration yields a non-empty team label.
func (c RenderConfig) HasLabel() bool {
	return c.IncludeGroupName || c.IncludeMemberNames
}

// RenderedTeam is one manifest block.
type RenderedTeam struct {
	Label   string
	Members []string

	// MissingExternalIDs lists members rendered with an empty external id.
	MissingExternalIDs []string
}

// Render builds the label and member list of a team.
func (c RenderConfig) Render(t *TeamEntry) RenderedTeam {
	var (
		label strings.Builder
		out   RenderedTeam
	)

	if c.IncludeGroupName {
		label.WriteString(t.GroupKey)
	}

	for _, m := range t.Members() {
		out.Members = append(out.Members, c.member(m))

		if c.IdentityMode != IdentityEmail && m.ExternalID == "" {
			out.MissingExternalIDs = append(out.MissingExternalIDs, m.Email)
		}

		if c.IncludeMemberNames {
			label.WriteString("_")
			label.WriteString(c.nameToken(m.Email))
		}
	}

	out.Label = strings.TrimPrefix(label.String(), "_")
	return out
}

// RenderAll renders teams in the given order.
func (c RenderConfig) RenderAll(teams []*TeamEntry) []RenderedTeam {
	out := make([]RenderedTeam, 0, len(teams))
	for _, t := range teams {
		out = append(out, c.Render(t))
	}
	return out
}

func (c RenderConfig) member(m Member) string {
	switch c.IdentityMode {
	case IdentityExternalID:
		return m.ExternalID
	case IdentityBoth:
		return "(" + m.Email + ", " + m.ExternalID + ")"
	default:
		return m.Email
	}
}

// nameToken is the label fragment for one member: the email local part with
// dots removed when initials are kept, else only its last dot-separated token.
func (c RenderConfig) nameToken(email string) string {
	local := LocalPart(email, c.EmailDomain)
	if c.IncludeInitials {
		return strings.ReplaceAll(local, ".", "")
	}
	return local[strings.LastIndex(local, ".")+1:]
}
