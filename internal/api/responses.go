package api

import "skillsprint/internal/models"

type QuizResponse struct {
	Questions []models.Question `json:"questions"`
}

type FlashcardsResponse struct {
	Flashcards []models.Flashcard `json:"flashcards"`
}

// StudyPack is everything produced for one upload by a background job.
type StudyPack struct {
	Document   models.Document    `json:"document"`
	Questions  []models.Question  `json:"questions"`
	Flashcards []models.Flashcard `json:"flashcards"`
}
