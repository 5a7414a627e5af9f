package scoring

import "live-quiz-service/internal/domain"

// Standings scores each participant in order against the quiz and ranks them. The order
// slice fixes the relative position of exact ties.
func Standings(order []string, answers map[string][]domain.AnswerSubmission, quiz domain.Quiz) []Ranked {
	scores := make([]ParticipantScore, 0, len(order))
	for _, id := range order {
		scores = append(scores, ScoreParticipant(id, answers[id], quiz.Questions, quiz.TimeLimitMs()))
	}
	return RankParticipants(scores)
}

// Entries converts a ranked list into leaderboard entries. Participants without a display
// name are shown by ID.
func Entries(ranked []Ranked, displayNames map[string]string, totalQuestions int) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for _, r := range ranked {
		name := displayNames[r.ParticipantID]
		if name == "" {
			name = r.ParticipantID
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:                  r.Rank,
			ParticipantID:         r.ParticipantID,
			DisplayName:           name,
			Score:                 r.TotalScore,
			CorrectAnswerCount:    r.CorrectCount,
			TotalQuestions:        totalQuestions,
			AverageResponseTimeMs: r.AverageResponseTimeMs,
			AccuracyPercent:       r.AccuracyPercent,
		})
	}
	return entries
}
