package roster

// FilterResult holds the teams left after filtering and the emails of
// students dropped for being in an undersized group.
type FilterResult struct {
	Teams      map[string]*TeamEntry
	SmallGroup []string
}

// FilterFullGroups removes teams with fewer members than their declared
// maximum when onlyFullGroups is set. The emails of removed teams are listed
// in SmallGroup, ordered by group name and then by member insertion order.
// The input map and its teams are never modified.
func FilterFullGroups(teams map[string]*TeamEntry, onlyFullGroups bool) FilterResult {
	return FilterGroups(teams, onlyFullGroups, 0)
}

// FilterGroups is FilterFullGroups with an additional lower bound: teams
// with fewer than minSize members are treated as undersized too.
func FilterGroups(teams map[string]*TeamEntry, onlyFullGroups bool, minSize int) FilterResult {
	res := FilterResult{Teams: make(map[string]*TeamEntry, len(teams))}

	for _, t := range SortedTeams(teams) {
		if (onlyFullGroups && !t.IsFull()) || t.Len() < minSize {
			res.SmallGroup = append(res.SmallGroup, t.Emails()...)
			continue
		}
		res.Teams[t.GroupKey] = t.Clone()
	}

	return res
}

// Filter applies the group filters of the configuration.
func (c RenderConfig) Filter(teams map[string]*TeamEntry) FilterResult {
	return FilterGroups(teams, c.OnlyFullGroups, c.MinGroupSize)
}
