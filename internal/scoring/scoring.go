// Package scoring turns stored answers into scores, rankings and summary statistics.
// Every function is pure: inputs are never mutated and equal inputs give equal outputs.
package scoring

import (
	"math"
	"sort"

	"live-quiz-service/internal/domain"
)

// The speed bonus is capped at speedBonusTenths/10 of the base points.
const speedBonusTenths = 3

// ParticipantScore is the aggregate of one participant's counted answers.
type ParticipantScore struct {
	ParticipantID         string
	TotalScore            int
	AccuracyPercent       float64
	AverageResponseTimeMs float64
	CorrectCount          int
	TotalAnswered         int
}

// Ranked is a ParticipantScore with its 1-based leaderboard position.
type Ranked struct {
	Rank int
	ParticipantScore
}

// ScoreAnswer returns the points earned by selecting an option. A nil selection or an
// option without a CorrectAnswer entry earns 0; a matched option earns its base points plus
// a speed bonus and never less than 1.
func ScoreAnswer(selected *int, correct []domain.CorrectAnswer, responseTimeMs, maxTimeMs int64) int {
	base, ok := matchOption(selected, correct)
	if !ok {
		return 0
	}
	total := base + speedBonus(base, responseTimeMs, maxTimeMs)
	if total < 1 {
		return 1
	}
	return total
}

// speedBonus computes floor(base * 0.3 * max(0, 1 - rt/max)) in integer arithmetic so the
// result does not depend on float rounding.
func speedBonus(base int, responseTimeMs, maxTimeMs int64) int {
	if base <= 0 || maxTimeMs <= 0 {
		return 0
	}
	if responseTimeMs < 0 {
		responseTimeMs = 0
	}
	remaining := maxTimeMs - responseTimeMs
	if remaining <= 0 {
		return 0
	}
	return int(int64(base) * speedBonusTenths * remaining / (10 * maxTimeMs))
}

func matchOption(selected *int, correct []domain.CorrectAnswer) (int, bool) {
	if selected == nil {
		return 0, false
	}
	for _, c := range correct {
		if c.Option == *selected {
			return c.Points, true
		}
	}
	return 0, false
}

// IsCorrect reports whether the selection matches any CorrectAnswer entry.
func IsCorrect(selected *int, correct []domain.CorrectAnswer) bool {
	_, ok := matchOption(selected, correct)
	return ok
}

// ScoreParticipant sums ScoreAnswer over the answers whose question is known. Answers to
// unknown questions are skipped and do not count towards accuracy or response time.
func ScoreParticipant(participantID string, answers []domain.AnswerSubmission, questions []domain.Question, maxTimeMs int64) ParticipantScore {
	byID := make(map[string]*domain.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	score := ParticipantScore{ParticipantID: participantID}
	var totalTime int64
	for _, answer := range answers {
		question, ok := byID[answer.QuestionID]
		if !ok {
			continue
		}
		score.TotalAnswered++
		totalTime += answer.ResponseTimeMs
		if IsCorrect(answer.SelectedOption, question.CorrectAnswers) {
			score.CorrectCount++
		}
		score.TotalScore += ScoreAnswer(answer.SelectedOption, question.CorrectAnswers, answer.ResponseTimeMs, maxTimeMs)
	}
	if score.TotalAnswered > 0 {
		score.AccuracyPercent = float64(score.CorrectCount) / float64(score.TotalAnswered) * 100
		score.AverageResponseTimeMs = float64(totalTime) / float64(score.TotalAnswered)
	}
	return score
}

// RankParticipants orders scores by total score descending, then average response time
// ascending. Equal pairs keep their input order. Participants with no counted answers are
// left out.
func RankParticipants(scores []ParticipantScore) []Ranked {
	ranked := make([]Ranked, 0, len(scores))
	for _, s := range scores {
		if s.TotalAnswered == 0 {
			continue
		}
		ranked = append(ranked, Ranked{ParticipantScore: s})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalScore != ranked[j].TotalScore {
			return ranked[i].TotalScore > ranked[j].TotalScore
		}
		return ranked[i].AverageResponseTimeMs < ranked[j].AverageResponseTimeMs
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Summarize aggregates a ranked list. An empty list yields all-zero stats.
func Summarize(ranked []Ranked) domain.LeaderboardStats {
	if len(ranked) == 0 {
		return domain.LeaderboardStats{}
	}

	stats := domain.LeaderboardStats{
		Count:        len(ranked),
		HighestScore: ranked[0].TotalScore,
		LowestScore:  ranked[0].TotalScore,
	}
	var scoreSum int
	var accuracySum, timeSum float64
	for _, r := range ranked {
		scoreSum += r.TotalScore
		accuracySum += r.AccuracyPercent
		timeSum += r.AverageResponseTimeMs
		if r.TotalScore > stats.HighestScore {
			stats.HighestScore = r.TotalScore
		}
		if r.TotalScore < stats.LowestScore {
			stats.LowestScore = r.TotalScore
		}
	}
	n := float64(len(ranked))
	stats.AverageScore = int(math.Round(float64(scoreSum) / n))
	stats.AverageAccuracy = int(math.Round(accuracySum / n))
	stats.AverageResponseTime = int(math.Round(timeSum / n))
	return stats
}
