// Package roster contains the domain model of a course roster export.
//
// It turns the flat list of course enrollments and group memberships fetched
// from the learning management system into deduplicated, filtered and sorted
// team records, and renders the member identities the repository provisioning
// tool expects.
//
// # Pipeline
//
//  1. Normalize: raw students + memberships + roles -> []StudentRecord
//  2. AggregateGroups: []StudentRecord -> teams keyed by group, groupless students
//  3. FilterFullGroups: drops undersized teams when only full groups are wanted
//  4. RenderConfig.Render: team -> label and member list
//
// The package has no dependencies outside the standard library. Fetching
// and writing live in infrastructure packages behind the CourseSource
// interface and the output writers.
//
//	records := roster.Normalize(students, memberships, roles, "@student.tue.nl")
//	agg := roster.AggregateGroups(records, roster.GroupSizes(memberships))
//	filtered := roster.FilterFullGroups(agg.Teams, true)
//	for _, team := range roster.SortedTeams(filtered.Teams) {
//	    rendered := cfg.Render(team)
//	    ...
//	}
package roster
