package worker

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	appkafka "example.com/chirp/internal/broker"
	"example.com/chirp/internal/csvdb"
	"example.com/chirp/internal/logger"
	"example.com/chirp/internal/models"
	"github.com/segmentio/kafka-go"
)

var logg = logger.New()

// Archive stores cheeps outside the main store.
type Archive interface {
	Store(c csvdb.Cheep) error
}

// Worker consumes cheep events from Kafka and appends created cheeps to the
// archive using a pool of goroutines.
type Worker struct {
	archive      Archive
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a Worker reading from reader and writing to archive.
func New(archive Archive, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		archive:      archive,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run reads and processes messages until ctx is done. Queued messages are
// drained before Run returns.
func (w *Worker) Run(ctx context.Context) {
	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan kafka.Message, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages into the job queue, backing off
// exponentially (capped at one second) on read errors.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- kafka.Message) {
	var retry int
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
			logg.Debug("worker", "Kafka read error, backing off "+backoff.String()+": "+err.Error())
			if !waitWithContext(ctx, backoff) {
				return
			}
			retry++
			continue
		}
		retry = 0

		if len(msg.Value) == 0 {
			continue
		}

		if !enqueue(ctx, jobs, msg) {
			return
		}
	}
}

// enqueue blocks until msg is queued or ctx is done.
func enqueue(ctx context.Context, jobs chan<- kafka.Message, msg kafka.Message) bool {
	for {
		select {
		case jobs <- msg:
			return true
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
			logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
		}
	}
}

// processLoop archives created cheeps until jobs is closed.
func (w *Worker) processLoop(jobs <-chan kafka.Message) {
	for msg := range jobs {
		if err := w.handle(msg); err != nil {
			logg.Error("worker", "Failed to handle cheep event", err)
		}
	}
}

func (w *Worker) handle(msg kafka.Message) error {
	e, err := appkafka.DecodeCheepEvent(msg)
	if err != nil {
		return fmt.Errorf("invalid cheep event: %w", err)
	}
	if e.Type != models.EventCheepCreated {
		return nil
	}
	rec := csvdb.Cheep{Author: e.UserName, Message: e.Text, Timestamp: e.TimeStamp}
	if err := w.archive.Store(rec); err != nil {
		return fmt.Errorf("failed to archive cheep: %w", err)
	}
	logg.Debug("worker", "Cheep archived (author anonymized)")
	return nil
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}
	return nil
}
