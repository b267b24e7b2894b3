package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortCheeps_NewestFirstThenUserNameThenID(t *testing.T) {
	base := time.Date(2023, 8, 1, 12, 0, 0, 0, time.UTC)
	cs := []Cheep{
		{ID: "b", UserName: "zed", TimeStamp: base},
		{ID: "c", UserName: "amy", TimeStamp: base.Add(-time.Minute)},
		{ID: "a", UserName: "amy", TimeStamp: base},
		{ID: "d", UserName: "amy", TimeStamp: base.Add(time.Minute)},
		{ID: "0", UserName: "amy", TimeStamp: base},
	}

	SortCheeps(cs)

	var ids []string
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"d", "0", "a", "b", "c"}, ids)
}

func TestSortCheepDTOs(t *testing.T) {
	base := time.Date(2023, 8, 1, 12, 0, 0, 0, time.UTC)
	ds := []CheepDTO{
		{UserName: "a", Text: "old", PostedAt: base},
		{UserName: "a", Text: "new", PostedAt: base.Add(time.Second)},
	}
	SortCheepDTOs(ds)
	assert.Equal(t, "new", ds[0].Text)
}

func TestSortAuthorDTOs_ByDisplayName(t *testing.T) {
	ds := []AuthorDTO{
		{UserName: "u3", DisplayName: "helge"},
		{UserName: "u1", DisplayName: "Adrian"},
		{UserName: "u2", DisplayName: "Helge"},
	}
	SortAuthorDTOs(ds)
	assert.Equal(t, []string{"u1", "u2", "u3"}, []string{ds[0].UserName, ds[1].UserName, ds[2].UserName})
}

func TestNewCheepDTO(t *testing.T) {
	ts := time.Date(2023, 8, 1, 12, 9, 20, 0, time.FixedZone("CEST", 2*3600))
	c := Cheep{ID: "1", UserName: "Helge", Text: "Hello, BDSA students!", TimeStamp: ts}

	dto := NewCheepDTO(c, Author{})
	assert.Equal(t, "Helge", dto.AuthorName)
	assert.Equal(t, "08/01/23 10:09:20", dto.TimeStamp)

	dto = NewCheepDTO(c, Author{UserName: "Helge", DisplayName: "Helge Pfeiffer"})
	assert.Equal(t, "Helge Pfeiffer", dto.AuthorName)
}

func TestCheepEvent_Time(t *testing.T) {
	c := Cheep{UserName: "author1", Text: "hello", TimeStamp: time.Unix(1690891760, 0)}
	e := NewCheepEvent(EventCheepCreated, c)
	assert.Equal(t, int64(1690891760), e.TimeStamp)
	assert.True(t, e.Time().Equal(c.TimeStamp))
}
