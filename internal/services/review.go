package services

import (
	"fmt"
	"strings"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"skillsprint/internal/models"
)

// ReviewService schedules flashcard reviews with FSRS. It is stateless: the
// caller supplies the card's current state and stores the returned one.
type ReviewService struct {
	params fsrs.Parameters
	now    func() time.Time
}

func NewReviewService() *ReviewService {
	return &ReviewService{params: fsrs.DefaultParam(), now: time.Now}
}

// Review applies one rating to state.
func (s *ReviewService) Review(state models.ReviewState, rating fsrs.Rating) (models.ReviewState, error) {
	now := s.now().UTC()
	scheduling := s.params.Repeat(state.ToFSRSCard(), now)
	info, ok := scheduling[rating]
	if !ok {
		return models.ReviewState{}, fmt.Errorf("rating %d not supported", rating)
	}
	return models.ReviewStateFromFSRS(info.Card), nil
}

func ParseRating(raw string) (fsrs.Rating, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "again":
		return fsrs.Again, nil
	case "hard":
		return fsrs.Hard, nil
	case "good":
		return fsrs.Good, nil
	case "easy":
		return fsrs.Easy, nil
	default:
		return 0, fmt.Errorf("unknown rating %q", raw)
	}
}
