package models

import "github.com/shopspring/decimal"

// RankingEntry is one row of a room's standing. TotalTime is the sum of
// the session's answer times; it breaks score ties (faster ranks higher).
type RankingEntry struct {
	Rank           int             `json:"rank"`
	UserID         string          `json:"user_id"`
	SessionID      string          `json:"session_id"`
	Score          int             `json:"score"`
	CorrectAnswers int             `json:"correct_answers"`
	TotalAnswers   int             `json:"total_answers"`
	Accuracy       float64         `json:"accuracy"`
	TotalTime      decimal.Decimal `json:"total_time"`
	Left           bool            `json:"left"`
}
