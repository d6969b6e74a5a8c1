package race

import (
	"math"
	"time"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCountdown Status = "countdown"
	StatusRacing    Status = "racing"
	StatusFinished  Status = "finished"
)

// Colors are handed out by join index, wrapping around when a room has
// more participants than the palette has entries.
var palette = []string{
	"#e6194b", // red
	"#3cb44b", // green
	"#4363d8", // blue
	"#f58231", // orange
	"#911eb4", // purple
	"#42d4f4", // cyan
	"#f032e6", // magenta
	"#9a6324", // brown
}

type Participant struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Progress       float64 `json:"progress"`
	WPM            int     `json:"wpm"`
	Accuracy       float64 `json:"accuracy"`
	FinishPosition int     `json:"finishPosition"`
	Finished       bool    `json:"finished"`
	Color          string  `json:"color"`
	IsBot          bool    `json:"isBot"`
}

// Race is one typing competition scoped to a room key. It is not safe
// for concurrent use; the owning room goroutine serializes all access.
type Race struct {
	Key          string
	Status       Status
	Participants []*Participant // insertion order = join order
	Text         string
	StartTime    *time.Time
	EndTime      *time.Time
	ComputerMode bool

	botIDs  map[string]bool
	joinSeq int
}

func New(key, text string, computerMode bool) *Race {
	return &Race{
		Key:          key,
		Status:       StatusWaiting,
		Participants: []*Participant{},
		Text:         text,
		ComputerMode: computerMode,
		botIDs:       map[string]bool{},
	}
}

// AddParticipant appends a new entrant in join order and assigns its
// palette color. Joining is allowed in any state; late joiners simply
// observe the race in progress.
func (r *Race) AddParticipant(id, name string, isBot bool) *Participant {
	p := &Participant{
		ID:       id,
		Name:     name,
		Accuracy: 100,
		Color:    palette[r.joinSeq%len(palette)],
		IsBot:    isBot,
	}
	r.joinSeq++
	r.Participants = append(r.Participants, p)
	if isBot {
		r.botIDs[id] = true
	}
	return p
}

// RemoveParticipant reports whether anything was removed.
func (r *Race) RemoveParticipant(id string) bool {
	for i, p := range r.Participants {
		if p.ID == id {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			delete(r.botIDs, id)
			return true
		}
	}
	return false
}

func (r *Race) Participant(id string) *Participant {
	for _, p := range r.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// HumanCount is the number of non-simulated participants. A race with
// zero humans is eligible for destruction regardless of bot state.
func (r *Race) HumanCount() int {
	n := 0
	for _, p := range r.Participants {
		if !p.IsBot {
			n++
		}
	}
	return n
}

func (r *Race) BotIDs() []string {
	ids := make([]string, 0, len(r.botIDs))
	for id := range r.botIDs {
		ids = append(ids, id)
	}
	return ids
}

// StartCountdown accepts a start request only while waiting. Any other
// state makes it a silent no-op so duplicate or late start messages are
// absorbed without a broadcast.
func (r *Race) StartCountdown() bool {
	if r.Status != StatusWaiting {
		return false
	}
	r.Status = StatusCountdown
	return true
}

// BeginRacing fires when the countdown delay elapses.
func (r *Race) BeginRacing(now time.Time) bool {
	if r.Status != StatusCountdown {
		return false
	}
	r.Status = StatusRacing
	r.StartTime = &now
	return true
}

// ApplyTelemetry folds one client progress report into the race.
// Progress is copied from the report as-is apart from the [0,100]
// clamp: no monotonicity or plausibility checks are made, the client
// is trusted. Derived stats are recomputed with zero-denominator
// guards that keep the prior value.
func (r *Race) ApplyTelemetry(id string, progress float64, position, errorCount int, now time.Time) bool {
	if r.Status != StatusRacing {
		return false
	}
	p := r.Participant(id)
	if p == nil || p.Finished {
		return false
	}

	p.Progress = clampPct(progress)

	if r.StartTime != nil {
		if mins := now.Sub(*r.StartTime).Minutes(); mins > 0 {
			p.WPM = int(math.Round(float64(position) / 5 / mins))
		}
	}
	if total := position + errorCount; total > 0 {
		p.Accuracy = math.Max(0, 100-float64(errorCount)/float64(total)*100)
	}

	if p.Progress >= 100 {
		r.finish(p, now)
	}
	return true
}

// ApplyFinish marks a participant done in response to an explicit
// finish signal. Out-of-state or repeated signals are no-ops.
func (r *Race) ApplyFinish(id string, now time.Time) bool {
	if r.Status != StatusRacing {
		return false
	}
	p := r.Participant(id)
	if p == nil || p.Finished {
		return false
	}
	r.finish(p, now)
	return true
}

// ApplyBotStep folds one simulation tick result into the race. Bot
// progress is kept monotonically non-decreasing across ticks.
func (r *Race) ApplyBotStep(id string, progress float64, wpm int, accuracy float64, now time.Time) bool {
	if r.Status != StatusRacing {
		return false
	}
	p := r.Participant(id)
	if p == nil || p.Finished {
		return false
	}

	p.Progress = math.Max(p.Progress, clampPct(progress))
	p.WPM = wpm
	p.Accuracy = accuracy

	if p.Progress >= 100 {
		r.finish(p, now)
	}
	return true
}

// finish pins progress, assigns the next finish position exactly once,
// and completes the race when this was the last unfinished participant.
func (r *Race) finish(p *Participant, now time.Time) {
	p.Progress = 100
	p.Finished = true
	p.FinishPosition = r.finishedCount()

	if r.AllFinished() {
		r.Status = StatusFinished
		r.EndTime = &now
	}
}

func (r *Race) finishedCount() int {
	n := 0
	for _, p := range r.Participants {
		if p.Finished {
			n++
		}
	}
	return n
}

func (r *Race) AllFinished() bool {
	if len(r.Participants) == 0 {
		return false
	}
	for _, p := range r.Participants {
		if !p.Finished {
			return false
		}
	}
	return true
}

func clampPct(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
