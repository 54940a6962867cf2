package models

import (
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

// Document is the structured result of parsing an uploaded file.
type Document struct {
	Title       string  `json:"title"`
	Slides      []Slide `json:"slides" validate:"dive"`
	TotalSlides int     `json:"totalSlides" validate:"gte=0"`
}

// Slide is one retained page, segmented into at most one heading and its paragraphs.
type Slide struct {
	SlideNumber int      `json:"slideNumber" validate:"gte=1"`
	Headings    []string `json:"headings" validate:"max=1"`
	Paragraphs  []string `json:"paragraphs"`
	RawText     string   `json:"rawText"`
}

// Heading returns the slide heading or "" if none was detected.
func (s Slide) Heading() string {
	if len(s.Headings) == 0 {
		return ""
	}
	return s.Headings[0]
}

type Question struct {
	Question    string   `json:"question" validate:"required"`
	Options     []string `json:"options" validate:"len=4,unique,dive,required"`
	Correct     string   `json:"correct" validate:"required"`
	Explanation string   `json:"explanation,omitempty"`
}

// HasCorrectOption reports whether Correct is one of Options.
func (q Question) HasCorrectOption() bool {
	for _, opt := range q.Options {
		if opt == q.Correct {
			return true
		}
	}
	return false
}

type Flashcard struct {
	Front    string `json:"front"`
	Back     string `json:"back"`
	Category string `json:"category"`
}

// ReviewState is the spaced repetition state a client keeps for a flashcard
// between reviews. The server holds no copy of it.
type ReviewState struct {
	Due           *time.Time `json:"due,omitempty"`
	Stability     float64    `json:"stability" validate:"gte=0"`
	Difficulty    float64    `json:"difficulty" validate:"gte=0"`
	ElapsedDays   int        `json:"elapsedDays" validate:"gte=0"`
	ScheduledDays int        `json:"scheduledDays" validate:"gte=0"`
	Reps          int        `json:"reps" validate:"gte=0"`
	Lapses        int        `json:"lapses" validate:"gte=0"`
	State         int        `json:"state" validate:"gte=0,lte=3"`
	LastReview    *time.Time `json:"lastReview,omitempty"`
}

func (r ReviewState) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     r.Stability,
		Difficulty:    r.Difficulty,
		ElapsedDays:   uint64(max(r.ElapsedDays, 0)),
		ScheduledDays: uint64(max(r.ScheduledDays, 0)),
		Reps:          uint64(max(r.Reps, 0)),
		Lapses:        uint64(max(r.Lapses, 0)),
		State:         fsrs.State(max(r.State, 0)),
	}
	if r.Due != nil {
		card.Due = *r.Due
	}
	if r.LastReview != nil {
		card.LastReview = *r.LastReview
	}
	return card
}

func ReviewStateFromFSRS(f fsrs.Card) ReviewState {
	state := ReviewState{
		Stability:     f.Stability,
		Difficulty:    f.Difficulty,
		ElapsedDays:   int(f.ElapsedDays),
		ScheduledDays: int(f.ScheduledDays),
		Reps:          int(f.Reps),
		Lapses:        int(f.Lapses),
		State:         int(f.State),
	}
	if !f.Due.IsZero() {
		due := f.Due
		state.Due = &due
	}
	if !f.LastReview.IsZero() {
		last := f.LastReview
		state.LastReview = &last
	}
	return state
}
