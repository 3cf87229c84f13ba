package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

var readPaths = []string{
	"/latest-temperature",
	"/latest-humidity",
	"/hourly-averages",
	"/daily-averages",
	"/weekly-averages",
	"/get-thresholds",
}

type stats struct {
	requests atomic.Int64
	success  atomic.Int64
	failed   atomic.Int64

	mu        sync.Mutex
	latencies []float64
	byPath    map[string]int64
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./tools/loadtest <base-url> [workers] [duration] [write-ratio]")
		fmt.Println("Example: go run ./tools/loadtest http://localhost:5000 50 30s 0.1")
		os.Exit(1)
	}

	baseURL := strings.TrimRight(os.Args[1], "/")
	workers := 50
	duration := 30 * time.Second
	writeRatio := 0.0

	if len(os.Args) > 2 {
		fmt.Sscanf(os.Args[2], "%d", &workers)
	}
	if len(os.Args) > 3 {
		if d, err := time.ParseDuration(os.Args[3]); err == nil {
			duration = d
		}
	}
	if len(os.Args) > 4 {
		fmt.Sscanf(os.Args[4], "%g", &writeRatio)
	}
	if workers <= 0 {
		workers = 1
	}

	fmt.Printf("Load Test Configuration:\n")
	fmt.Printf("  Base URL:    %s\n", baseURL)
	fmt.Printf("  Workers:     %d\n", workers)
	fmt.Printf("  Duration:    %v\n", duration)
	fmt.Printf("  Write ratio: %.2f\n\n", writeRatio)

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        workers,
			MaxIdleConnsPerHost: workers,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	s := &stats{
		latencies: make([]float64, 0, 10000),
		byPath:    make(map[string]int64),
	}
	start := time.Now()
	deadline := start.Add(duration)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				if writeRatio > 0 && rand.Float64() < writeRatio {
					s.do(client, newReadingRequest(baseURL), "/readings", http.StatusAccepted)
					continue
				}
				path := readPaths[rand.IntN(len(readPaths))]
				req, _ := http.NewRequest(http.MethodGet, baseURL+path, nil)
				s.do(client, req, path, http.StatusOK, http.StatusNotFound)
			}
		}()
	}
	wg.Wait()

	s.print(time.Since(start))
}

func newReadingRequest(baseURL string) *http.Request {
	body, _ := json.Marshal(map[string]any{
		"sensorData": map[string]any{
			"temperature": 15 + rand.Float64()*15,
			"humidity":    30 + rand.Float64()*50,
			"timestamp":   time.Now().UnixMilli(),
		},
	})
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/readings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// do counts a response as successful when its status is one of ok.
func (s *stats) do(client *http.Client, req *http.Request, path string, ok ...int) {
	begin := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(begin)

	s.requests.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	resp.Body.Close()

	accepted := false
	for _, code := range ok {
		if resp.StatusCode == code {
			accepted = true
			break
		}
	}
	if !accepted {
		s.failed.Add(1)
		return
	}
	s.success.Add(1)

	s.mu.Lock()
	s.latencies = append(s.latencies, latency.Seconds())
	s.byPath[path]++
	s.mu.Unlock()
}

func (s *stats) print(elapsed time.Duration) {
	total := s.requests.Load()
	success := s.success.Load()
	failed := s.failed.Load()

	s.mu.Lock()
	lat := append([]float64(nil), s.latencies...)
	paths := make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		paths = append(paths, p)
	}
	s.mu.Unlock()
	sort.Float64s(lat)
	sort.Strings(paths)

	fmt.Println("\n==========================================")
	fmt.Println("Load Test Results")
	fmt.Println("==========================================")
	fmt.Printf("Duration:       %v\n", elapsed)
	fmt.Printf("Total Requests: %d\n", total)
	fmt.Printf("Successful:     %d\n", success)
	fmt.Printf("Failed:         %d\n", failed)
	if total > 0 {
		fmt.Printf("Success Rate:   %.2f%%\n", float64(success)/float64(total)*100)
	}
	fmt.Printf("Requests/sec:   %.2f\n", float64(total)/elapsed.Seconds())

	if len(lat) > 0 {
		fmt.Println("\nLatency Statistics:")
		fmt.Printf("  Min:          %v\n", seconds(lat[0]))
		fmt.Printf("  Max:          %v\n", seconds(lat[len(lat)-1]))
		fmt.Printf("  Average:      %v\n", seconds(stat.Mean(lat, nil)))
		for _, q := range []float64{0.50, 0.95, 0.99} {
			fmt.Printf("  p%-2.0f:          %v\n", q*100, seconds(stat.Quantile(q, stat.Empirical, lat, nil)))
		}
	}

	fmt.Println("\nSuccessful requests by endpoint:")
	s.mu.Lock()
	for _, p := range paths {
		fmt.Printf("  %-20s %d\n", p, s.byPath[p])
	}
	s.mu.Unlock()
	fmt.Println("==========================================")
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second)).Round(time.Microsecond)
}
