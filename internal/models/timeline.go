package models

import "time"

// Scope selects which cheeps a timeline query covers.
type Scope string

const (
	ScopePublic   Scope = "public"
	ScopeAuthor   Scope = "author"
	ScopeFollowed Scope = "followed"
)

// TimelineQuery is what the store turns into a filtered, sorted, paged query.
// UserName is ignored for ScopePublic.
type TimelineQuery struct {
	Scope    Scope
	UserName string
	Offset   int
	Limit    int
}

// Event types published on the cheep topic.
const (
	EventCheepCreated = "cheep_created"
	EventCheepDeleted = "cheep_deleted"
)

// CheepEvent is the Kafka payload describing a change to a cheep.
type CheepEvent struct {
	Type      string `json:"type"`
	UserName  string `json:"user_name"`
	Text      string `json:"text"`
	TimeStamp int64  `json:"timestamp"`
}

func NewCheepEvent(typ string, c Cheep) CheepEvent {
	return CheepEvent{Type: typ, UserName: c.UserName, Text: c.Text, TimeStamp: c.TimeStamp.Unix()}
}

func (e CheepEvent) Time() time.Time {
	return time.Unix(e.TimeStamp, 0).UTC()
}
