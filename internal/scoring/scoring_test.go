package scoring

import (
	"reflect"
	"testing"

	"live-quiz-service/internal/domain"
)

func opt(i int) *int { return &i }

func TestScoreAnswer(t *testing.T) {
	single := []domain.CorrectAnswer{{Option: 1, Points: 100}}
	tests := []struct {
		name     string
		selected *int
		correct  []domain.CorrectAnswer
		rt, max  int64
		want     int
	}{
		{name: "fast correct answer", selected: opt(1), correct: single, rt: 3000, max: 15000, want: 124},
		{name: "instant answer earns full bonus", selected: opt(1), correct: single, rt: 0, max: 15000, want: 130},
		{name: "overtime answer earns base only", selected: opt(1), correct: single, rt: 20000, max: 15000, want: 100},
		{name: "unmatched option", selected: opt(2), correct: single, rt: 1000, max: 15000, want: 0},
		{name: "timed out", selected: nil, correct: single, rt: 15000, max: 15000, want: 0},
		{name: "floor of one", selected: opt(0), correct: []domain.CorrectAnswer{{Option: 0, Points: 1}}, rt: 14999, max: 15000, want: 1},
		{name: "zero point option still earns one", selected: opt(3), correct: []domain.CorrectAnswer{{Option: 3, Points: 0}}, rt: 100, max: 15000, want: 1},
		{name: "chosen option value not the best", selected: opt(2), correct: []domain.CorrectAnswer{{Option: 0, Points: 100}, {Option: 2, Points: 50}}, rt: 15000, max: 15000, want: 50},
		{name: "no time limit", selected: opt(1), correct: single, rt: 10, max: 0, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreAnswer(tt.selected, tt.correct, tt.rt, tt.max); got != tt.want {
				t.Errorf("ScoreAnswer() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreParticipantSkipsUnknownQuestions(t *testing.T) {
	questions := []domain.Question{
		{ID: "q1", CorrectAnswers: []domain.CorrectAnswer{{Option: 1, Points: 100}}},
		{ID: "q2", CorrectAnswers: []domain.CorrectAnswer{{Option: 0, Points: 100}}},
	}
	answers := []domain.AnswerSubmission{
		{QuestionID: "q1", SelectedOption: opt(1), ResponseTimeMs: 3000},
		{QuestionID: "q2", SelectedOption: nil, ResponseTimeMs: 15000},
		{QuestionID: "ghost", SelectedOption: opt(0), ResponseTimeMs: 1},
	}

	got := ScoreParticipant("p1", answers, questions, 15000)
	want := ParticipantScore{
		ParticipantID:         "p1",
		TotalScore:            124,
		AccuracyPercent:       50,
		AverageResponseTimeMs: 9000,
		CorrectCount:          1,
		TotalAnswered:         2,
	}
	if got != want {
		t.Fatalf("ScoreParticipant() = %+v, want %+v", got, want)
	}
}

func TestScoreParticipantWithoutAnswers(t *testing.T) {
	got := ScoreParticipant("p1", nil, nil, 15000)
	if got.TotalAnswered != 0 || got.AverageResponseTimeMs != 0 || got.AccuracyPercent != 0 {
		t.Fatalf("expected zero score, got %+v", got)
	}
}

func TestRankParticipantsTieBreakAndExclusion(t *testing.T) {
	scores := []ParticipantScore{
		{ParticipantID: "slow", TotalScore: 200, AverageResponseTimeMs: 5000, TotalAnswered: 2},
		{ParticipantID: "idle", TotalScore: 0, TotalAnswered: 0},
		{ParticipantID: "fast", TotalScore: 200, AverageResponseTimeMs: 2000, TotalAnswered: 2},
		{ParticipantID: "top", TotalScore: 250, AverageResponseTimeMs: 9000, TotalAnswered: 2},
	}

	ranked := RankParticipants(scores)
	var ids []string
	for i, r := range ranked {
		if r.Rank != i+1 {
			t.Fatalf("rank %d at position %d", r.Rank, i)
		}
		ids = append(ids, r.ParticipantID)
	}
	if want := []string{"top", "fast", "slow"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("order = %v, want %v", ids, want)
	}
	if scores[0].ParticipantID != "slow" {
		t.Fatalf("input slice was reordered")
	}
}

func TestRankParticipantsIsStableForExactTies(t *testing.T) {
	scores := []ParticipantScore{
		{ParticipantID: "a", TotalScore: 10, AverageResponseTimeMs: 100, TotalAnswered: 1},
		{ParticipantID: "b", TotalScore: 10, AverageResponseTimeMs: 100, TotalAnswered: 1},
		{ParticipantID: "c", TotalScore: 10, AverageResponseTimeMs: 100, TotalAnswered: 1},
	}
	for i := 0; i < 5; i++ {
		ranked := RankParticipants(scores)
		if ranked[0].ParticipantID != "a" || ranked[1].ParticipantID != "b" || ranked[2].ParticipantID != "c" {
			t.Fatalf("unstable order: %+v", ranked)
		}
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); got != (domain.LeaderboardStats{}) {
		t.Fatalf("empty summary = %+v", got)
	}

	ranked := RankParticipants([]ParticipantScore{
		{ParticipantID: "a", TotalScore: 125, AccuracyPercent: 100, AverageResponseTimeMs: 1000.4, TotalAnswered: 1},
		{ParticipantID: "b", TotalScore: 50, AccuracyPercent: 50, AverageResponseTimeMs: 2000, TotalAnswered: 2},
	})
	got := Summarize(ranked)
	want := domain.LeaderboardStats{
		Count:               2,
		AverageScore:        88,
		HighestScore:        125,
		LowestScore:         50,
		AverageAccuracy:     75,
		AverageResponseTime: 1500,
	}
	if got != want {
		t.Fatalf("Summarize() = %+v, want %+v", got, want)
	}
}

func TestStandingsAndEntries(t *testing.T) {
	quiz := domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{ID: "q1", Options: []string{"A", "B", "C", "D"}, CorrectAnswers: []domain.CorrectAnswer{{Option: 1, Points: 100}}},
		},
		QuestionTimeMs: 15000,
	}
	answers := map[string][]domain.AnswerSubmission{
		"p1": {{ParticipantID: "p1", QuestionID: "q1", SelectedOption: opt(1), ResponseTimeMs: 3000}},
		"p2": {{ParticipantID: "p2", QuestionID: "q1", SelectedOption: opt(0), ResponseTimeMs: 1000}},
	}

	ranked := Standings([]string{"p2", "p1", "p3"}, answers, quiz)
	entries := Entries(ranked, map[string]string{"p1": "Alice"}, len(quiz.Questions))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ParticipantID != "p1" || entries[0].Score != 124 || entries[0].DisplayName != "Alice" {
		t.Fatalf("unexpected leader %+v", entries[0])
	}
	if entries[1].DisplayName != "p2" || entries[1].Score != 0 || entries[1].Rank != 2 {
		t.Fatalf("unexpected runner-up %+v", entries[1])
	}
}
