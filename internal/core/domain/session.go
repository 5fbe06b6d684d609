package domain

import "time"

// Entity memory categories. The order here is also the order hint
// clauses appear in rewritten queries.
const (
	EntityPeople  = "people"
	EntityFiles   = "files"
	EntityAmounts = "amounts"
	EntityDates   = "dates"
)

// EntityCategories lists all categories in rewrite order.
var EntityCategories = []string{EntityPeople, EntityFiles, EntityAmounts, EntityDates}

// EntityMemory accumulates deduplicated entity mentions per category.
// Slices keep first-seen order; merging never reorders or duplicates.
type EntityMemory struct {
	People  []string `json:"people"`
	Amounts []string `json:"amounts"`
	Files   []string `json:"files"`
	Dates   []string `json:"dates"`
}

// Category returns the slice for a named category, or nil for an
// unknown name.
func (m *EntityMemory) Category(name string) []string {
	switch name {
	case EntityPeople:
		return m.People
	case EntityAmounts:
		return m.Amounts
	case EntityFiles:
		return m.Files
	case EntityDates:
		return m.Dates
	default:
		return nil
	}
}

// Merge appends values not already present in the named category,
// preserving first-seen order. Unknown categories are ignored.
func (m *EntityMemory) Merge(name string, values []string) {
	var target *[]string
	switch name {
	case EntityPeople:
		target = &m.People
	case EntityAmounts:
		target = &m.Amounts
	case EntityFiles:
		target = &m.Files
	case EntityDates:
		target = &m.Dates
	default:
		return
	}
	for _, v := range values {
		if !containsString(*target, v) {
			*target = append(*target, v)
		}
	}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Turn is one recorded question/answer pair.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// MaxRecentTurns bounds the per-session turn history; the oldest turn
// is evicted first.
const MaxRecentTurns = 5

// Session binds a conversation to one thread for its whole lifetime.
// ThreadID never changes after creation; Reset clears memory and
// turns but keeps the binding.
type Session struct {
	ID          string       `json:"session_id"`
	ThreadID    string       `json:"thread_id"`
	RecentTurns []Turn       `json:"recent_turns"`
	Entities    EntityMemory `json:"entity_memory"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Clone returns a deep copy so callers can never mutate stored state.
func (s Session) Clone() Session {
	out := s
	out.RecentTurns = append([]Turn(nil), s.RecentTurns...)
	out.Entities = EntityMemory{
		People:  append([]string(nil), s.Entities.People...),
		Amounts: append([]string(nil), s.Entities.Amounts...),
		Files:   append([]string(nil), s.Entities.Files...),
		Dates:   append([]string(nil), s.Entities.Dates...),
	}
	return out
}
