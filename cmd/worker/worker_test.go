package worker

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	appkafka "example.com/chirp/internal/broker"
	"example.com/chirp/internal/csvdb"
	"example.com/chirp/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var posted = time.Date(2023, 8, 1, 13, 14, 37, 0, time.UTC)

func eventMessage(t *testing.T, typ, user, text string) kafka.Message {
	t.Helper()
	c := models.Cheep{UserName: user, Text: text, TimeStamp: posted}
	data, err := json.Marshal(models.NewCheepEvent(typ, c))
	require.NoError(t, err)
	return kafka.Message{Key: []byte(typ), Value: data}
}

type failingArchive struct{}

func (failingArchive) Store(csvdb.Cheep) error { return errors.New("disk full") }

// ---------- handle ----------

func TestWorker_HandleCreated(t *testing.T) {
	db := csvdb.NewCheepDatabase(filepath.Join(t.TempDir(), "archive.csv"))
	w := New(db, &appkafka.MockKafka{}, 1, 1)

	require.NoError(t, w.handle(eventMessage(t, models.EventCheepCreated, "Helge", `Hello, "BDSA" students!`)))

	got, err := db.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []csvdb.Cheep{{Author: "Helge", Message: `Hello, "BDSA" students!`, Timestamp: posted.Unix()}}, got)
}

func TestWorker_HandleIgnoresDeleted(t *testing.T) {
	db := csvdb.NewCheepDatabase(filepath.Join(t.TempDir(), "archive.csv"))
	w := New(db, &appkafka.MockKafka{}, 1, 1)

	require.NoError(t, w.handle(eventMessage(t, models.EventCheepDeleted, "Helge", "gone")))

	got, err := db.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWorker_HandleErrors(t *testing.T) {
	tbl := []struct {
		name    string
		archive Archive
		msg     kafka.Message
	}{
		{
			name:    "invalid json",
			archive: csvdb.NewCheepDatabase(filepath.Join(t.TempDir(), "archive.csv")),
			msg:     kafka.Message{Value: []byte("{invalid-json}")},
		},
		{
			name:    "archive failure",
			archive: failingArchive{},
			msg:     eventMessage(t, models.EventCheepCreated, "Adrian", "Hej"),
		},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			w := New(tt.archive, &appkafka.MockKafka{}, 1, 1)
			assert.Error(t, w.handle(tt.msg))
		})
	}
}

// ---------- Run ----------

func TestWorker_RunArchivesCreatedCheeps(t *testing.T) {
	db := csvdb.NewCheepDatabase(filepath.Join(t.TempDir(), "archive.csv"))
	reader := &appkafka.MockKafka{ReadMessages: []kafka.Message{
		eventMessage(t, models.EventCheepCreated, "Helge", "first"),
		{Value: nil},
		{Value: []byte("{invalid-json}")},
		eventMessage(t, models.EventCheepDeleted, "Helge", "first"),
		eventMessage(t, models.EventCheepCreated, "Adrian", "second"),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	w := New(db, reader, 2, 4)
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, err := db.ReadAll()
		return err == nil && len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	got, err := db.ReadAll()
	require.NoError(t, err)
	authors := []string{got[0].Author, got[1].Author}
	assert.ElementsMatch(t, []string{"Helge", "Adrian"}, authors)
}

func TestWorker_RunStopsOnReadErrors(t *testing.T) {
	w := New(failingArchive{}, &appkafka.MockKafkaFail{}, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker kept running after context was cancelled")
	}
}

func TestNew_Defaults(t *testing.T) {
	w := New(failingArchive{}, &appkafka.MockKafka{}, 0, 0)
	assert.Positive(t, w.workerCount)
	assert.Equal(t, w.workerCount*10, w.jobQueueSize)
}
