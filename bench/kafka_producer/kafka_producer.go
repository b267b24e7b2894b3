package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appkafka "example.com/chirp/internal/broker"
	"example.com/chirp/internal/models"
	"github.com/google/uuid"
)

// Floods the cheep topic with cheep_created events to measure how fast the
// archiving worker keeps up.
func main() {
	var (
		total      int
		numWorkers int
		broker     string
		topic      string
	)
	flag.IntVar(&total, "n", 100000, "total number of events to send")
	flag.IntVar(&numWorkers, "c", 4, "number of parallel producers")
	flag.StringVar(&broker, "broker", "localhost:29092", "Kafka broker address")
	flag.StringVar(&topic, "topic", "chirp-cheeps", "cheep event topic")
	flag.Parse()

	w, err := appkafka.NewKafkaWriter(appkafka.KafkaConfig{Brokers: []string{broker}, Topic: topic})
	if err != nil {
		panic(fmt.Sprintf("kafka writer: %v", err))
	}
	defer w.Close()
	publisher := &appkafka.CheepPublisher{Writer: w}

	// A fresh author per run keeps archived benchmark rows easy to spot
	author := "bench-" + uuid.NewString()[:8]
	start := time.Now()

	var successCount uint64
	var failCount uint64

	jobs := make(chan int, numWorkers*10)
	var wg sync.WaitGroup

	for wID := 0; wID < numWorkers; wID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				c := models.Cheep{
					ID:        uuid.NewString(),
					UserName:  author,
					Text:      fmt.Sprintf("kafka bench %d", i),
					TimeStamp: time.Now(),
				}
				if err := publisher.Publish(context.Background(), models.NewCheepEvent(models.EventCheepCreated, c)); err != nil {
					atomic.AddUint64(&failCount, 1)
					fmt.Printf("write error: %v\n", err)
					continue
				}
				atomic.AddUint64(&successCount, 1)
			}
		}()
	}

	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// --- Benchmark results ---
	elapsed := time.Since(start)
	fmt.Printf("Author: %s\n", author)
	fmt.Printf("Total events: %d\n", total)
	fmt.Printf("Successful: %d, Failed: %d\n", successCount, failCount)
	fmt.Printf("Elapsed time: %s\n", elapsed)
	fmt.Printf("Throughput: %.2f msg/s\n", float64(successCount)/elapsed.Seconds())
}
