package models

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// TimeStampLayout is how cheep timestamps are rendered for display. The rendered
// string doubles as part of the key used to find a cheep for deletion.
const TimeStampLayout = "01/02/06 15:04:05"

type Author struct {
	UserName     string    `json:"user_name"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Cheep struct {
	ID        string    `json:"id"`
	UserName  string    `json:"user_name"`
	Text      string    `json:"text"`
	TimeStamp time.Time `json:"timestamp"`
}

type FollowRelation struct {
	Follower string `json:"follower"`
	Followed string `json:"followed"`
}

// CheepDTO is the read-only projection of a cheep handed to the HTTP layer.
type CheepDTO struct {
	UserName   string    `json:"user_name"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	TimeStamp  string    `json:"timestamp"`
	PostedAt   time.Time `json:"posted_at"`
}

type AuthorDTO struct {
	UserName    string `json:"user_name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// FormatTimeStamp renders t in UTC using TimeStampLayout.
func FormatTimeStamp(t time.Time) string {
	return t.UTC().Format(TimeStampLayout)
}

// NewCheepDTO projects c. The author may be zero, in which case the
// username stands in for the display name.
func NewCheepDTO(c Cheep, a Author) CheepDTO {
	name := a.DisplayName
	if name == "" {
		name = c.UserName
	}
	return CheepDTO{
		UserName:   c.UserName,
		AuthorName: name,
		Text:       c.Text,
		TimeStamp:  FormatTimeStamp(c.TimeStamp),
		PostedAt:   c.TimeStamp.UTC(),
	}
}

func NewAuthorDTO(a Author) AuthorDTO {
	return AuthorDTO{UserName: a.UserName, DisplayName: a.DisplayName, Email: a.Email}
}

// CompareCheeps is the timeline order: newest first, then author username,
// then id. It is a total order for stored cheeps.
func CompareCheeps(a, b Cheep) int {
	if c := b.TimeStamp.Compare(a.TimeStamp); c != 0 {
		return c
	}
	if c := cmp.Compare(a.UserName, b.UserName); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func SortCheeps(cs []Cheep) {
	slices.SortFunc(cs, CompareCheeps)
}

// CompareCheepDTOs orders DTOs newest first.
func CompareCheepDTOs(a, b CheepDTO) int {
	if c := b.PostedAt.Compare(a.PostedAt); c != 0 {
		return c
	}
	if c := cmp.Compare(a.UserName, b.UserName); c != 0 {
		return c
	}
	return cmp.Compare(a.Text, b.Text)
}

func SortCheepDTOs(ds []CheepDTO) {
	slices.SortFunc(ds, CompareCheepDTOs)
}

// CompareAuthorDTOs orders by display name, case-insensitively, then username.
func CompareAuthorDTOs(a, b AuthorDTO) int {
	if c := cmp.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)); c != 0 {
		return c
	}
	return cmp.Compare(a.UserName, b.UserName)
}

func SortAuthorDTOs(ds []AuthorDTO) {
	slices.SortFunc(ds, CompareAuthorDTOs)
}
