package race

import "time"

// Snapshot is the full serializable state of a race, pushed to every
// room member after any state-affecting event. There is no delta
// protocol; rooms are small and event rates are low.
type Snapshot struct {
	Key          string        `json:"roomKey"`
	Status       Status        `json:"status"`
	Participants []Participant `json:"participants"`
	Text         string        `json:"text"`
	StartTime    *time.Time    `json:"startTime"`
	EndTime      *time.Time    `json:"endTime"`
	ComputerMode bool          `json:"isComputerMode"`
}

// Snapshot deep-copies the race so the broadcast value can cross
// goroutine boundaries without sharing participant pointers.
func (r *Race) Snapshot() Snapshot {
	parts := make([]Participant, len(r.Participants))
	for i, p := range r.Participants {
		parts[i] = *p
	}
	return Snapshot{
		Key:          r.Key,
		Status:       r.Status,
		Participants: parts,
		Text:         r.Text,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		ComputerMode: r.ComputerMode,
	}
}
