package transport

import (
	"sort"
)

// FilterAction selects the list SetFilter adds an identifier to.
type FilterAction int

const (
	// Include adds the identifier to the include list
	Include FilterAction = iota

	// Exclude adds the identifier to the exclude list
	Exclude
)

// FilterMode selects how the lists are applied.
type FilterMode int

const (
	// FilterPassAll delivers every frame
	FilterPassAll FilterMode = iota

	// FilterIncludeOnly delivers only identifiers on the include list
	FilterIncludeOnly

	// FilterExcludeListed delivers every identifier not on the exclude list
	FilterExcludeListed
)

func (m FilterMode) String() string {
	switch m {
	case FilterPassAll:
		return "pass-all"
	case FilterIncludeOnly:
		return "include-only"
	case FilterExcludeListed:
		return "exclude-listed"
	default:
		return "unknown"
	}
}

// Filter decides which identifiers reach Receive. The zero value passes
// everything. Filter is not safe for concurrent use; Inbox guards it.
type Filter struct {
	mode    FilterMode
	include map[uint16]struct{}
	exclude map[uint16]struct{}
}

// Set adds id to the list selected by action.
func (f *Filter) Set(id uint16, action FilterAction) {
	if f.include == nil {
		f.include = make(map[uint16]struct{})
		f.exclude = make(map[uint16]struct{})
	}
	switch action {
	case Include:
		f.include[id] = struct{}{}
	case Exclude:
		f.exclude[id] = struct{}{}
	}
}

// Clear empties both lists and resets the mode to FilterPassAll.
func (f *Filter) Clear() {
	f.include = nil
	f.exclude = nil
	f.mode = FilterPassAll
}

// SetMode selects the active list.
func (f *Filter) SetMode(mode FilterMode) {
	f.mode = mode
}

// Mode returns the active mode.
func (f *Filter) Mode() FilterMode {
	return f.mode
}

// Accept reports whether a frame with identifier id is delivered.
func (f *Filter) Accept(id uint16) bool {
	switch f.mode {
	case FilterIncludeOnly:
		_, ok := f.include[id]
		return ok
	case FilterExcludeListed:
		_, ok := f.exclude[id]
		return !ok
	default:
		return true
	}
}

// Included returns the include list in ascending order.
func (f *Filter) Included() []uint16 {
	return sortedIDs(f.include)
}

// Excluded returns the exclude list in ascending order.
func (f *Filter) Excluded() []uint16 {
	return sortedIDs(f.exclude)
}

func sortedIDs(set map[uint16]struct{}) []uint16 {
	ids := make([]uint16, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
