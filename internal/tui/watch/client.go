package watch

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mediamill/internal/events"
)

// --- Message types ---

type eventMsg events.Event

type healthMsg struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
}

type jobsMsg struct {
	Jobs []jobSummary `json:"jobs"`
}

type jobSummary struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// --- Commands ---

func newRequest(method, url, apiKey string) (*http.Request, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

// subscribeToEvents connects to the SSE /api/events endpoint and feeds events
// into the provided channel. Returns sseDisconnectedMsg when the connection drops.
func subscribeToEvents(apiURL, apiKey string, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := newRequest(http.MethodGet, apiURL+"/api/events", apiKey)
		if err != nil {
			return errMsg(err)
		}

		resp, err := (&http.Client{}).Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var current struct {
			id   int64
			typ  string
			data string
		}

		for scanner.Scan() {
			line := scanner.Text()

			if line == "" {
				if current.data != "" {
					var ev events.Event
					if err := json.Unmarshal([]byte(current.data), &ev); err == nil {
						// The frame fields win over the payload copy.
						if current.id != 0 {
							ev.ID = current.id
						}
						if current.typ != "" {
							ev.Type = current.typ
						}
						if ev.At.IsZero() {
							ev.At = time.Now()
						}
						ch <- ev
					}
					current.id, current.typ, current.data = 0, "", ""
				}
				continue
			}

			switch {
			case strings.HasPrefix(line, "id: "):
				if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
					current.id = id
				}
			case strings.HasPrefix(line, "event: "):
				current.typ = line[7:]
			case strings.HasPrefix(line, "data: "):
				current.data = line[6:]
			}
		}

		return sseDisconnectedMsg{}
	}
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchHealth queries the /healthz endpoint.
func fetchHealth(apiURL, apiKey string) tea.Msg {
	req, err := newRequest(http.MethodGet, apiURL+"/healthz", apiKey)
	if err != nil {
		return errMsg(err)
	}

	resp, err := (&http.Client{Timeout: 2 * time.Second}).Do(req)
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return h
}

// fetchJobs queries GET /api/jobs for the current queue snapshot.
func fetchJobs(apiURL, apiKey string) tea.Msg {
	req, err := newRequest(http.MethodGet, apiURL+"/api/jobs", apiKey)
	if err != nil {
		return errMsg(err)
	}

	resp, err := (&http.Client{Timeout: 2 * time.Second}).Do(req)
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var j jobsMsg
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		return errMsg(err)
	}
	return j
}
