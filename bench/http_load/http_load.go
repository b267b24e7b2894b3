package main

import (
	"context"
	"crypto/tls"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const tokenCookie = "chirp_token"

func main() {
	// --- Command-line flags ---
	var server string
	var duration int
	var concurrency int
	var csvFile string
	var trimPercent float64
	var readRatio int
	var insecure bool

	flag.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines / authors")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.IntVar(&readRatio, "reads", 4, "timeline reads per posted cheep")
	flag.BoolVar(&insecure, "insecure", true, "skip TLS verification for self-signed certs")
	flag.Parse()

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure}, //nolint:gosec // bench against local certs
		},
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	// --- Register one author per goroutine ---
	fmt.Printf("Registering %d authors...\n", concurrency)
	names := make([]string, concurrency)
	tokens := make([]string, concurrency)
	for i := 0; i < concurrency; i++ {
		names[i] = fmt.Sprintf("load-%d-%d", i, time.Now().UnixNano())
		token, err := register(client, server, names[i])
		if err != nil {
			panic(fmt.Sprintf("failed to register author: %v", err))
		}
		tokens[i] = token
	}
	fmt.Println("Authors registered.")

	// --- Prepare concurrency test ---
	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup

	var requests int64
	var successes int64
	var errors4xx int64
	var errors5xx int64

	latencySlices := make([][]float64, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			var localLatencies []float64

			for n := 0; time.Now().Before(stopTime); n++ {
				var req *http.Request
				if n%(readRatio+1) == 0 {
					form := url.Values{"text": {fmt.Sprintf("load test cheep %d", time.Now().UnixNano())}}
					req, _ = http.NewRequestWithContext(context.Background(), http.MethodPost, server+"/", strings.NewReader(form.Encode()))
					req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				} else {
					// alternate between the public timeline and the author's home timeline
					target := server + "/?page=1"
					if n%2 == 0 {
						target = server + "/" + url.PathEscape(names[idx])
					}
					req, _ = http.NewRequestWithContext(context.Background(), http.MethodGet, target, nil)
				}
				req.Header.Set("Authorization", "Bearer "+tokens[idx])

				start := time.Now()
				resp, err := client.Do(req)
				lat := time.Since(start).Seconds() * 1000 // latency in ms
				localLatencies = append(localLatencies, lat)
				atomic.AddInt64(&requests, 1)

				if err != nil {
					fmt.Printf("Request error: %v\n", err)
					continue
				}

				// 303 is the success response of a posted cheep
				switch {
				case resp.StatusCode < 400:
					atomic.AddInt64(&successes, 1)
				case resp.StatusCode < 500:
					atomic.AddInt64(&errors4xx, 1)
				default:
					atomic.AddInt64(&errors5xx, 1)
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}

			latencySlices[idx] = localLatencies
		}(i)
	}

	wg.Wait()

	// --- Merge all latencies ---
	var allLatencies []float64
	for _, slice := range latencySlices {
		allLatencies = append(allLatencies, slice...)
	}
	sort.Float64s(allLatencies)

	fmt.Printf("Requests: %d  Successes: %d  4xx: %d  5xx: %d\n", requests, successes, errors4xx, errors5xx)
	fmt.Printf("Latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n",
		trimmedMean(allLatencies, trimPercent), percentile(allLatencies, 50),
		percentile(allLatencies, 90), percentile(allLatencies, 99))

	if err := saveLatencies(csvFile, allLatencies); err != nil {
		fmt.Printf("Failed to save latencies: %v\n", err)
		return
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}

// register creates an author and returns the session token the server set.
func register(client *http.Client, server, name string) (string, error) {
	form := url.Values{
		"username": {name},
		"email":    {name + "@bench.local"},
		"password": {"bench"},
	}
	resp, err := client.PostForm(server+"/register", form)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	for _, c := range resp.Cookies() {
		if c.Name == tokenCookie {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("no %s cookie in response", tokenCookie)
}

func saveLatencies(path string, latencies []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{"latency_ms"})
	for _, d := range latencies {
		_ = w.Write([]string{fmt.Sprintf("%.3f", d)})
	}
	w.Flush()
	return w.Error()
}

// trimmedMean calculates mean latency after trimming top/bottom trimPercent values
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	trimmed := data[trim : len(data)-trim]
	if len(trimmed) == 0 {
		return 0
	}
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// percentile calculates the p-th percentile from sorted data
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
