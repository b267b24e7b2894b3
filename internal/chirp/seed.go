package chirp

import (
	"context"
	"errors"
	"time"
)

type seedAuthor struct {
	userName, displayName, email string
}

var seedAuthors = []seedAuthor{
	{"Roger Histand", "Roger Histand", "Roger+Histand@hotmail.com"},
	{"Luanna Muro", "Luanna Muro", "Luanna-Muro@ku.dk"},
	{"Wendell Ballan", "Wendell Ballan", "Wendell-Ballan@gmail.com"},
	{"Nathan Sirmon", "Nathan Sirmon", "Nathan+Sirmon@dtu.dk"},
	{"Quintin Sitts", "Quintin Sitts", "Quintin+Sitts@itu.dk"},
	{"Mellie Yost", "Mellie Yost", "Mellie+Yost@ku.dk"},
	{"Malcolm Janski", "Malcolm Janski", "Malcolm-Janski@gmail.com"},
	{"Octavio Wagganer", "Octavio Wagganer", "Octavio.Wagganer@dtu.dk"},
	{"Johnnie Calixto", "Johnnie Calixto", "Johnnie+Calixto@itu.dk"},
	{"Jacqualine Gilcoine", "Jacqualine Gilcoine", "Jacqualine.Gilcoine@gmail.com"},
	{"Helge", "Helge", "ropf@itu.dk"},
	{"Adrian", "Adrian", "adho@itu.dk"},
}

var seedTexts = []string{
	"They were married in Chicago, with old Smith, and was expected aboard every day.",
	"And then, as he thought of the ship and the whale, he was silent for a while.",
	"What do you think of that, Mr. Holmes? asked the inspector.",
	"The train was late, and the station was crowded with people waiting for it.",
	"It was the best of times, and the harbour was full of masts.",
	"I had not been long in the room before the door opened again.",
	"There is no doubt that the tide will turn before morning.",
	"He looked up from his book and smiled at the rain on the window.",
	"So the captain went below, and the mate took the watch.",
	"At last the letter came, and with it the news we had feared.",
	"We walked along the shore until the lights of the town were behind us.",
	"She said nothing, but her eyes were on the door all evening.",
	"The old clock in the hall struck twelve as we sat down.",
	"Nobody in the village had seen the stranger arrive.",
}

// seedEpoch anchors the seeded timestamps, one cheep per hour from here.
var seedEpoch = time.Date(2023, 8, 1, 13, 13, 18, 0, time.UTC)

// seedCheepCount spans more than one page so paging is visible on a fresh install.
const seedCheepCount = 2*PageSize + 8

// Seed fills an empty store with a fixed set of authors and cheeps. It does
// nothing when Helge already exists. Seeded authors have no password.
func (s *Service) Seed(ctx context.Context) error {
	if _, err := s.store.GetAuthor(ctx, "Helge"); err == nil {
		logg.Debug("chirp", "Store already seeded")
		return nil
	} else if !isNotFound(err) {
		return err
	}

	for _, a := range seedAuthors {
		_, err := s.CreateAuthor(ctx, NewAuthor{UserName: a.userName, DisplayName: a.displayName, Email: a.email})
		if err != nil && !errors.Is(err, ErrDuplicateUserName) && !errors.Is(err, ErrDuplicateEmail) {
			return err
		}
	}

	// the first ten authors cheep in rotation
	for i := 0; i < seedCheepCount; i++ {
		a := seedAuthors[i%10]
		ts := seedEpoch.Add(time.Duration(i) * time.Hour)
		if _, err := s.CreateCheep(ctx, a.userName, seedTexts[i%len(seedTexts)], ts); err != nil {
			return err
		}
	}

	if _, err := s.CreateCheep(ctx, "Helge", "Hello, BDSA students!", seedEpoch.Add(-2*time.Hour)); err != nil {
		return err
	}
	if _, err := s.CreateCheep(ctx, "Adrian", "Hej, velkommen til kurset.", seedEpoch.Add(-time.Hour)); err != nil {
		return err
	}

	if err := s.Follow(ctx, "Adrian", "Helge"); err != nil {
		return err
	}
	if err := s.Follow(ctx, "Helge", "Adrian"); err != nil {
		return err
	}

	logg.Info("chirp", "Store seeded")
	return nil
}
