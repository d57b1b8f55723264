package watch

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"mediamill/internal/events"
)

// JobState tracks a single job as seen through the queue snapshot and the
// event stream. Task is only known once an event for the job arrives.
type JobState struct {
	ID        string
	Task      string
	Status    string
	ErrorKind string
	FirstSeen time.Time
	StartedAt time.Time
	EndedAt   time.Time
}

// applyEvent folds a job lifecycle event into the job map.
func applyEvent(jobs map[string]*JobState, e events.Event) {
	if e.JobID == "" {
		return
	}

	j, ok := jobs[e.JobID]
	if !ok {
		j = &JobState{ID: e.JobID, FirstSeen: e.At}
		jobs[e.JobID] = j
	}
	if e.Task != "" {
		j.Task = e.Task
	}

	switch e.Type {
	case events.TypeJobEnqueued:
		j.Status = "queued"
	case events.TypeJobStarted:
		j.Status = "started"
		j.StartedAt = e.At
	case events.TypeJobFinished:
		j.Status = "finished"
		j.EndedAt = e.At
	case events.TypeJobFailed:
		j.Status = "failed"
		j.EndedAt = e.At
		j.ErrorKind = e.ErrorKind
	}
}

// applySnapshot merges a GET /api/jobs listing. Events remain authoritative
// for task names, which the listing does not carry.
func applySnapshot(jobs map[string]*JobState, snapshot []jobSummary) {
	for _, s := range snapshot {
		j, ok := jobs[s.ID]
		if !ok {
			j = &JobState{ID: s.ID, FirstSeen: s.CreatedAt}
			jobs[s.ID] = j
		}
		j.Status = s.Status
	}
}

func statusGlyph(status string, theme Theme) string {
	switch status {
	case "finished":
		return theme.StatusOK.Render("✓")
	case "failed":
		return theme.StatusFailed.Render("✗")
	case "started":
		return theme.StatusRunning.Render("▶")
	default:
		return theme.StatusQueued.Render("·")
	}
}

func jobDuration(j *JobState, now time.Time) string {
	switch {
	case !j.StartedAt.IsZero() && !j.EndedAt.IsZero():
		return j.EndedAt.Sub(j.StartedAt).Round(time.Millisecond * 100).String()
	case !j.StartedAt.IsZero():
		return now.Sub(j.StartedAt).Round(time.Second).String()
	default:
		return "-"
	}
}

// jobRows builds table rows, active jobs first, then newest first.
func jobRows(jobs map[string]*JobState, theme Theme, now time.Time) []table.Row {
	ordered := make([]*JobState, 0, len(jobs))
	for _, j := range jobs {
		ordered = append(ordered, j)
	}
	sort.Slice(ordered, func(a, b int) bool {
		ja, jb := ordered[a], ordered[b]
		activeA := ja.Status == "started" || ja.Status == "queued"
		activeB := jb.Status == "started" || jb.Status == "queued"
		if activeA != activeB {
			return activeA
		}
		return ja.FirstSeen.After(jb.FirstSeen)
	})

	rows := make([]table.Row, 0, len(ordered))
	for _, j := range ordered {
		task := j.Task
		if task == "" {
			task = "?"
		}
		detail := j.Status
		if j.ErrorKind != "" {
			detail = j.ErrorKind
		}
		rows = append(rows, table.Row{
			statusGlyph(j.Status, theme),
			task,
			shortID(j.ID),
			detail,
			jobDuration(j, now),
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
