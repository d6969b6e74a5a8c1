package bot

import (
	"math"
	"math/rand"
	"time"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
	Mixed  Difficulty = "mixed"
)

// ParseDifficulty maps a client-supplied string onto a known
// difficulty. Absent or unrecognized values fall back to medium.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case Easy, Medium, Hard, Mixed:
		return Difficulty(s)
	default:
		return Medium
	}
}

type params struct {
	minWPM, maxWPM float64
	errorRate      float64
	consistency    float64
}

var difficultyParams = map[Difficulty]params{
	Easy:   {minWPM: 20, maxWPM: 40, errorRate: 0.08, consistency: 0.5},
	Medium: {minWPM: 40, maxWPM: 70, errorRate: 0.05, consistency: 0.7},
	Hard:   {minWPM: 70, maxWPM: 100, errorRate: 0.02, consistency: 0.9},
}

// Speed oscillates with roughly this period so a bot looks like it
// speeds up and slows down over a few seconds rather than jittering
// every tick.
const oscillationPeriod = 5 * time.Second

const charsPerWord = 5

// accuracyFloor bounds how far error events can degrade a bot.
const accuracyFloor = 80

// Profile drives one simulated participant. All randomness flows
// through the profile's own source, so a fixed seed reproduces the
// exact progress curve.
type Profile struct {
	MinWPM        float64
	MaxWPM        float64
	ErrorRate     float64
	Consistency   float64
	PassageLength int

	Speed    float64
	Accuracy float64

	phase    float64
	progress float64
	rng      *rand.Rand
}

// NewProfile builds a profile for the given difficulty. Mixed draws
// one of easy/medium/hard uniformly per bot.
func NewProfile(d Difficulty, passageLength int, rng *rand.Rand) *Profile {
	if d == Mixed {
		all := []Difficulty{Easy, Medium, Hard}
		d = all[rng.Intn(len(all))]
	}
	pr, ok := difficultyParams[d]
	if !ok {
		pr = difficultyParams[Medium]
	}
	return &Profile{
		MinWPM:        pr.minWPM,
		MaxWPM:        pr.maxWPM,
		ErrorRate:     pr.errorRate,
		Consistency:   pr.consistency,
		PassageLength: passageLength,
		Speed:         pr.minWPM + rng.Float64()*(pr.maxWPM-pr.minWPM),
		Accuracy:      100,
		phase:         rng.Float64() * 2 * math.Pi,
		rng:           rng,
	}
}

// StepResult is the outcome of one simulation tick.
type StepResult struct {
	Progress float64
	WPM      int
	Accuracy float64
	Done     bool
}

// Step advances the simulation given the wall-clock time elapsed since
// the race started. Driving off total elapsed time rather than
// accumulated deltas keeps scheduling jitter from compounding.
func (p *Profile) Step(elapsed time.Duration) StepResult {
	mid := (p.MinWPM + p.MaxWPM) / 2
	amp := (p.MaxWPM - p.MinWPM) / 2 * (1 - p.Consistency)
	speed := mid + amp*math.Sin(2*math.Pi*elapsed.Seconds()/oscillationPeriod.Seconds()+p.phase)
	speed = math.Min(p.MaxWPM, math.Max(p.MinWPM, speed))
	p.Speed = speed

	chars := speed * charsPerWord * elapsed.Minutes()
	progress := math.Min(100, chars/float64(p.PassageLength)*100)
	// Never let an oscillation dip walk progress backwards.
	p.progress = math.Max(p.progress, progress)

	if p.rng.Float64() < p.ErrorRate {
		p.Accuracy = math.Max(accuracyFloor, p.Accuracy-p.rng.Float64()*2)
	}

	return StepResult{
		Progress: p.progress,
		WPM:      int(math.Round(speed)),
		Accuracy: p.Accuracy,
		Done:     p.progress >= 100,
	}
}
