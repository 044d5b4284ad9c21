package service

import "PolyEdge/internal/domain/models"

// QuestionParser turns free-text market questions into structured thresholds.
// Both methods return an error wrapping parser.ErrUnparseable when nothing usable is found.
type QuestionParser interface {
	ParsePrice(question string) (models.PriceQuestion, error)
	// ParseWeather reads location and market kind from question and description,
	// threshold, direction and date from the question alone.
	ParseWeather(question, description string) (models.WeatherQuestion, error)
}
