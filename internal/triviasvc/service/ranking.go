package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

// BuildRankings projects a room's sessions (left ones included) into a
// total order: score descending, then cumulative answer time ascending
// (faster overall responder wins the tie), then session id for
// determinism. Ranks are sequential with no gaps; ties get distinct
// consecutive ranks.
func BuildRankings(sessions []*models.Session, totalTimes map[string]decimal.Decimal) []models.RankingEntry {
	entries := make([]models.RankingEntry, 0, len(sessions))
	for _, sess := range sessions {
		total, ok := totalTimes[sess.ID]
		if !ok {
			total = decimal.Zero
		}
		entries = append(entries, models.RankingEntry{
			UserID:         sess.UserID,
			SessionID:      sess.ID,
			Score:          sess.Score,
			CorrectAnswers: sess.CorrectAnswers,
			TotalAnswers:   sess.TotalAnswers,
			Accuracy:       sess.Accuracy(),
			TotalTime:      total,
			Left:           !sess.Active(),
		})
	}

	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Score != entries[b].Score {
			return entries[a].Score > entries[b].Score
		}
		if cmp := entries[a].TotalTime.Cmp(entries[b].TotalTime); cmp != 0 {
			return cmp < 0
		}
		return entries[a].SessionID < entries[b].SessionID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
