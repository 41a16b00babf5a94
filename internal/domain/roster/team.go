package roster

import "sort"

// ══════════════════════════════════════════════════════════════════════════════
// TEAM ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Member is one email / external id pair of a team.
type Member struct {
	Email      string
	ExternalID string
}

// TeamEntry is a group of students that will share one repository.
// Members are kept in insertion order and each email appears at most once.
type TeamEntry struct {
	GroupKey      string
	MaxMembership int

	emails []string
	ids    map[string]string
}

// NewTeamEntry creates an empty team for group.
func NewTeamEntry(group string, maxMembership int) *TeamEntry {
	return &TeamEntry{
		GroupKey:      group,
		MaxMembership: maxMembership,
		ids:           make(map[string]string),
	}
}

// Add merges a member into the team. A repeated email keeps its original
// position and takes the latest external id.
func (t *TeamEntry) Add(email, externalID string) {
	if _, ok := t.ids[email]; !ok {
		t.emails = append(t.emails, email)
	}
	t.ids[email] = externalID
}

// Len returns the number of distinct members.
func (t *TeamEntry) Len() int {
	return len(t.emails)
}

// IsFull reports whether the team reached its declared maximum size.
// Teams without a declared maximum are always full.
func (t *TeamEntry) IsFull() bool {
	return t.MaxMembership <= 0 || t.Len() >= t.MaxMembership
}

// Emails returns the member emails in insertion order.
func (t *TeamEntry) Emails() []string {
	out := make([]string, len(t.emails))
	copy(out, t.emails)
	return out
}

// Members returns the members in insertion order.
func (t *TeamEntry) Members() []Member {
	out := make([]Member, 0, len(t.emails))
	for _, e := range t.emails {
		out = append(out, Member{Email: e, ExternalID: t.ids[e]})
	}
	return out
}

// ExternalID returns the external id stored for email.
func (t *TeamEntry) ExternalID(email string) (string, bool) {
	id, ok := t.ids[email]
	return id, ok
}

// Clone returns a deep copy of the team.
func (t *TeamEntry) Clone() *TeamEntry {
	c := NewTeamEntry(t.GroupKey, t.MaxMembership)
	for _, e := range t.emails {
		c.Add(e, t.ids[e])
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION
// ══════════════════════════════════════════════════════════════════════════════

// Aggregate is the result of grouping roster rows.
type Aggregate struct {
	Teams     map[string]*TeamEntry
	Groupless []StudentRecord
}

// Empty reports whether no group at all was found.
func (a Aggregate) Empty() bool {
	return len(a.Teams) == 0
}

// AggregateGroups merges records of the same group into one TeamEntry.
// sizes supplies the declared maximum size per group and may be nil.
// Records without a group are returned as groupless, in input order.
func AggregateGroups(records []StudentRecord, sizes map[string]int) Aggregate {
	agg := Aggregate{Teams: make(map[string]*TeamEntry)}

	for _, r := range records {
		if !r.HasGroup() {
			agg.Groupless = append(agg.Groupless, r)
			continue
		}

		team, ok := agg.Teams[r.Group]
		if !ok {
			team = NewTeamEntry(r.Group, sizes[r.Group])
			agg.Teams[r.Group] = team
		}
		team.Add(r.Email, r.ExternalID)
	}

	return agg
}

// SortedTeams returns the teams ordered by group name, byte-wise ascending.
func SortedTeams(teams map[string]*TeamEntry) []*TeamEntry {
	out := make([]*TeamEntry, 0, len(teams))
	for _, t := range teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GroupKey < out[j].GroupKey
	})
	return out
}

// SortRecordsByGroup orders rows by group name, keeping the input order of
// rows within one group. Groupless rows come first.
func SortRecordsByGroup(records []StudentRecord) []StudentRecord {
	out := make([]StudentRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Group < out[j].Group
	})
	return out
}
