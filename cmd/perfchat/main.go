// perfchat drives the chat endpoint with scripted turns and reports reply
// latency percentiles against a running server.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

type options struct {
	baseURL        string
	conversationID string
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	verbose        bool
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

var defaultTexts = []string{
	"Hi, I'm checking in on today's schedule.",
	"My goal is to finish the quarterly report this week.",
	"Please remind me to call the dentist tomorrow.",
	"I prefer short answers, by the way.",
}

func main() {
	opts := parseFlags()

	client := &http.Client{Timeout: opts.turnTimeout}
	latencies := make([]float64, 0, opts.turns)

	for i := 0; i < opts.turns; i++ {
		text := opts.texts[i%len(opts.texts)]
		started := time.Now()
		reply, err := sendTurn(client, opts, text)
		elapsed := time.Since(started)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn %d failed: %v\n", i+1, err)
			os.Exit(1)
		}
		latencies = append(latencies, float64(elapsed.Milliseconds()))
		if opts.verbose {
			fmt.Printf("turn %d: %.0fms  %q\n", i+1, float64(elapsed.Milliseconds()), truncate(reply, 60))
		}
		if i+1 < opts.turns && opts.interTurnDelay > 0 {
			time.Sleep(opts.interTurnDelay)
		}
	}

	printSummary(latencies)
}

func parseFlags() options {
	var opts options
	var texts string
	flag.StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "server base URL")
	flag.StringVar(&opts.conversationID, "conversation", "perfchat", "conversation id to use")
	flag.IntVar(&opts.turns, "turns", 8, "number of turns to send")
	flag.DurationVar(&opts.interTurnDelay, "delay", 500*time.Millisecond, "delay between turns")
	flag.DurationVar(&opts.turnTimeout, "timeout", 90*time.Second, "per-turn timeout")
	flag.StringVar(&texts, "texts", "", "pipe-separated turn texts (default: built-in script)")
	flag.BoolVar(&opts.verbose, "v", false, "print each turn")
	flag.Parse()

	opts.texts = defaultTexts
	if strings.TrimSpace(texts) != "" {
		opts.texts = strings.Split(texts, "|")
	}
	if opts.turns <= 0 {
		opts.turns = 1
	}
	return opts
}

func sendTurn(client *http.Client, opts options, text string) (string, error) {
	payload, err := json.Marshal(chatRequest{ConversationID: opts.conversationID, Message: text})
	if err != nil {
		return "", err
	}
	res, err := client.Post(opts.baseURL+"/api/chat", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return "", fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed chatResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Reply, nil
}

func printSummary(latencies []float64) {
	if len(latencies) == 0 {
		fmt.Println("no samples")
		return
	}
	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	fmt.Printf("turns:  %d\n", len(sorted))
	fmt.Printf("avg:    %.0fms\n", sum/float64(len(sorted)))
	fmt.Printf("p50:    %.0fms\n", quantile(sorted, 0.50))
	fmt.Printf("p95:    %.0fms\n", quantile(sorted, 0.95))
	fmt.Printf("max:    %.0fms\n", sorted[len(sorted)-1])
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
