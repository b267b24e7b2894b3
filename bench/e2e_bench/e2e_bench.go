package main

import (
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// archived mirrors a row served by the legacy /cheeps endpoint.
type archived struct {
	Author    string `json:"author"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Measures how long a cheep posted to the server takes to reach the CSV
// archive: server -> Kafka -> worker -> archive, read back via the legacy service.
func main() {
	var serverAddr, legacyAddr string
	var authors, cheeps, concurrency, pollTimeout int

	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "chirp server base URL")
	flag.StringVar(&legacyAddr, "legacy", "http://localhost:8081", "legacy service base URL")
	flag.IntVar(&authors, "authors", 20, "number of authors to register")
	flag.IntVar(&cheeps, "cheeps", 100, "number of cheeps to post")
	flag.IntVar(&concurrency, "c", 20, "concurrency for posting")
	flag.IntVar(&pollTimeout, "timeout", 30, "seconds to wait for archiving")
	flag.Parse()

	ctx := context.Background()
	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}, //nolint:gosec // bench against local certs
		Timeout:   10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	// --- 1) Register authors ---
	fmt.Printf("Registering %d authors...\n", authors)
	tokens := make([]string, 0, authors)
	for i := 0; i < authors; i++ {
		name := fmt.Sprintf("e2e-%d-%d", i, time.Now().UnixNano())
		form := url.Values{"username": {name}, "email": {name + "@bench.local"}, "password": {"bench"}}
		resp, err := client.PostForm(serverAddr+"/register", form)
		if err != nil {
			fmt.Printf("register error: %v\n", err)
			os.Exit(1)
		}
		for _, c := range resp.Cookies() {
			if c.Name == "chirp_token" {
				tokens = append(tokens, c.Value)
			}
		}
		resp.Body.Close()
	}
	if len(tokens) == 0 {
		fmt.Println("no authors registered")
		os.Exit(1)
	}

	// --- 2) Post cheeps concurrently ---
	fmt.Printf("Posting %d cheeps with concurrency %d...\n", cheeps, concurrency)
	var mu sync.Mutex
	posted := make(map[string]time.Time, cheeps)
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	runID := rand.Int63()

	for i := 0; i < cheeps; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			text := fmt.Sprintf("e2e %d/%d", runID, i)
			form := url.Values{"text": {text}}
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, serverAddr+"/", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Authorization", "Bearer "+tokens[rand.Intn(len(tokens))])

			sent := time.Now()
			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("post error: %v\n", err)
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusSeeOther {
				fmt.Printf("post status %d\n", resp.StatusCode)
				return
			}
			mu.Lock()
			posted[text] = sent
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	// --- 3) Poll the archive until every cheep shows up ---
	fmt.Println("Waiting for archive...")
	var latencies []float64
	deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)
	for len(posted) > 0 && time.Now().Before(deadline) {
		rows, err := readArchive(ctx, client, legacyAddr)
		if err != nil {
			fmt.Printf("archive read error: %v\n", err)
		}
		now := time.Now()
		for _, r := range rows {
			if sent, ok := posted[r.Message]; ok {
				latencies = append(latencies, now.Sub(sent).Seconds()*1000)
				delete(posted, r.Message)
			}
		}
		time.Sleep(200 * time.Millisecond)
	}

	// --- 4) Report ---
	if len(latencies) == 0 {
		fmt.Println("No archived cheeps recorded.")
		return
	}
	sort.Float64s(latencies)
	fmt.Printf("Archive stats (ms, poll resolution 200ms): count=%d p50=%.2f p90=%.2f p99=%.2f missing=%d\n",
		len(latencies), percentile(latencies, 50), percentile(latencies, 90), percentile(latencies, 99), len(posted))

	f, err := os.Create("e2e_latencies.csv")
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write([]string{"latency_ms"})
	for _, v := range latencies {
		_ = w.Write([]string{fmt.Sprintf("%.3f", v)})
	}
	w.Flush()
	fmt.Println("Saved e2e_latencies.csv")
}

func readArchive(ctx context.Context, client *http.Client, legacyAddr string) ([]archived, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, legacyAddr+"/cheeps", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var rows []archived
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// percentile calculates the requested percentile of sorted data using linear interpolation.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	return data[f]*(float64(c)-k) + data[c]*(k-float64(f))
}
