package appkafka

import (
	"context"
	"testing"
	"time"

	"example.com/chirp/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheepPublisher_RoundTrip(t *testing.T) {
	mock := &MockKafka{}
	p := &CheepPublisher{Writer: mock}

	c := models.Cheep{UserName: "author1", Text: "hello", TimeStamp: time.Unix(1690891760, 0)}
	require.NoError(t, p.Publish(context.Background(), models.NewCheepEvent(models.EventCheepCreated, c)))

	written := mock.Written()
	require.Len(t, written, 1)
	assert.Equal(t, models.EventCheepCreated, string(written[0].Key))

	e, err := DecodeCheepEvent(written[0])
	require.NoError(t, err)
	assert.Equal(t, "author1", e.UserName)
	assert.Equal(t, "hello", e.Text)
	assert.Equal(t, int64(1690891760), e.TimeStamp)
}

func TestCheepPublisher_NoWriterDrops(t *testing.T) {
	var p *CheepPublisher
	assert.NoError(t, p.Publish(context.Background(), models.CheepEvent{}))
	assert.NoError(t, (&CheepPublisher{}).Publish(context.Background(), models.CheepEvent{}))
}

func TestCheepPublisher_WriteFailure(t *testing.T) {
	p := &CheepPublisher{Writer: &MockKafkaFail{}}
	assert.Error(t, p.Publish(context.Background(), models.CheepEvent{Type: models.EventCheepCreated}))
}

func TestDecodeCheepEvent_KeyFallbackAndInvalid(t *testing.T) {
	e, err := DecodeCheepEvent(kafka.Message{Key: []byte("cheep_deleted"), Value: []byte(`{"user_name":"a"}`)})
	require.NoError(t, err)
	assert.Equal(t, models.EventCheepDeleted, e.Type)

	_, err = DecodeCheepEvent(kafka.Message{Value: []byte("{invalid-json}")})
	assert.Error(t, err)
}
