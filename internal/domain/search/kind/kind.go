package kind

// Kind is a searchable content type.
type Kind string

// Entity kinds.
const (
	Law      Kind = "law"
	Section  Kind = "section"
	Scenario Kind = "scenario"
)

// IsValid checks if the kind is one of the searchable types.
func (k Kind) IsValid() bool {
	return k == Law || k == Section || k == Scenario
}

// Filter narrows a search to one kind or all of them.
type Filter string

// Filter values.
const (
	All           Filter = "all"
	OnlyLaws      Filter = Filter(Law)
	OnlySections  Filter = Filter(Section)
	OnlyScenarios Filter = Filter(Scenario)
)

// IsValid checks if the filter is one of the supported values.
func (f Filter) IsValid() bool {
	return f == All || Kind(f).IsValid()
}

// Includes reports whether results of kind k pass the filter.
func (f Filter) Includes(k Kind) bool {
	return f == All || Kind(f) == k
}

// Kinds lists the kinds the filter selects, in fetch order.
func (f Filter) Kinds() []Kind {
	if f == All {
		return []Kind{Section, Scenario, Law}
	}
	return []Kind{Kind(f)}
}
