package auction

import (
	"time"

	"github.com/google/uuid"
)

// State represents where an auction is in its lifecycle
type State string

const (
	StateFuture    State = "future"
	StateOngoing   State = "ongoing"
	StateCompleted State = "completed"
)

// rank orders states along the lifecycle chain
func (s State) rank() int {
	switch s {
	case StateFuture:
		return 0
	case StateOngoing:
		return 1
	case StateCompleted:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is one of the known lifecycle states
func (s State) Valid() bool {
	return s.rank() >= 0
}

// ParseState converts a raw string into a State
func ParseState(raw string) (State, bool) {
	s := State(raw)
	return s, s.Valid()
}

// Item represents an auction listing
type Item struct {
	ID          uuid.UUID `json:"id" db:"id"`
	SellerID    uuid.UUID `json:"seller_id" db:"seller_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       float64   `json:"price" db:"price"`
	StartTime   time.Time `json:"start_time" db:"start_time"`
	Duration    int       `json:"duration" db:"duration"` // minutes
	State       State     `json:"state" db:"state"`
	ImageURL    string    `json:"image_url" db:"image_url"`
}

// EndTime returns start_time + duration
func (i *Item) EndTime() time.Time {
	return i.StartTime.Add(time.Duration(i.Duration) * time.Minute)
}

// HasStarted returns true once now has reached the start time
func (i *Item) HasStarted(now time.Time) bool {
	return !now.Before(i.StartTime)
}

// HasEnded returns true once now has reached the end time
func (i *Item) HasEnded(now time.Time) bool {
	return !now.Before(i.EndTime())
}

// ComputeState derives the state an auction should be in at the given time.
// It ignores the stored state; use Advance to combine the two.
func ComputeState(item *Item, now time.Time) State {
	switch {
	case !item.HasStarted(now):
		return StateFuture
	case item.HasEnded(now):
		return StateCompleted
	default:
		return StateOngoing
	}
}

// Advance returns the later of the two states so a transition never goes backwards
func Advance(current, computed State) State {
	if computed.rank() > current.rank() {
		return computed
	}
	return current
}

// InitialState picks the state for a freshly created listing
func InitialState(startTime, now time.Time) State {
	if startTime.After(now) {
		return StateFuture
	}
	return StateOngoing
}
