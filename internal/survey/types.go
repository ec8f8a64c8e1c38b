package survey

import (
	"encoding/json"
	"strings"
	"time"
)

// Family is the root of ownership for users and their survey data.
type Family struct {
	ID            string
	HouseholdSize int // 0 means unknown
	Location      string
	CreatedAt     time.Time
}

// User is a household member. FamilyID is empty until the user has been
// assigned to a family; sessions cannot be started before that.
type User struct {
	ID        string
	FamilyID  string
	AgeGroup  string
	Interests string
	CreatedAt time.Time
}

// SessionStatus is the survey session lifecycle state.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusAbandoned  SessionStatus = "abandoned"
)

// Terminal reports whether no further mutation is allowed for the status.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// CanTransition reports whether the status may move to the given one.
// The only legal transitions are in_progress -> completed|abandoned.
func (s SessionStatus) CanTransition(to SessionStatus) bool {
	return s == StatusInProgress && to.Terminal()
}

// Session is one survey interview instance for a user/family.
type Session struct {
	ID        string
	UserID    string
	FamilyID  string
	Status    SessionStatus
	CreatedAt time.Time
}

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// Valid reports whether the role is one of the three known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAgent || r == RoleSystem
}

// Turn is one immutable message in a session's conversation log.
// Order is strictly increasing and contiguous within the session.
type Turn struct {
	ID        int64
	SessionID string
	UserID    string
	Order     int
	Role      Role
	Text      string
	Extracted json.RawMessage // nil when the turn carried no structured payload
	Timestamp time.Time
}

// Appliance is a committed, validated appliance record. Rows are never
// edited in place; corrections insert a new row that supersedes the old
// one for the same slot.
type Appliance struct {
	ID        int64
	SessionID string
	UserID    string
	FamilyID  string

	Name     string
	Number   int
	Power    int // watts
	FuncTime int // minutes of use per day

	NumWindows int
	Windows    []TimeWindow // len(Windows) == NumWindows, 1..3

	FuncCycle     int // minutes per cycle
	Fixed         bool
	OccasionalUse float64
	WdWeType      int

	CreatedAt time.Time
}

// SlotKey normalizes an appliance name into the slot identity used to
// decide whether two extractions describe the same conceptual appliance.
func SlotKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// LatestPerSlot reduces a creation-ordered row history to the
// authoritative record per slot: the latest row wins, and slots keep the
// order in which they first appeared.
func LatestPerSlot(rows []Appliance) []Appliance {
	index := make(map[string]int)
	var out []Appliance
	for _, a := range rows {
		key := SlotKey(a.Name)
		if i, ok := index[key]; ok {
			out[i] = a
			continue
		}
		index[key] = len(out)
		out = append(out, a)
	}
	return out
}
