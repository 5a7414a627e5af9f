package domain

import "time"

// DefaultQuestionTimeMs is the answer window used when a quiz does not set one.
const DefaultQuestionTimeMs int64 = 15000

// CorrectAnswer awards Points when the option at index Option is selected.
type CorrectAnswer struct {
	Option int `json:"option"`
	Points int `json:"points"`
}

// Question models a multiple-choice question. Options are addressed by index; any option
// not listed in CorrectAnswers earns nothing.
type Question struct {
	ID             string          `json:"id"`
	Prompt         string          `json:"prompt"`
	Options        []string        `json:"options"`
	CorrectAnswers []CorrectAnswer `json:"correctAnswers"`
}

// Quiz is the ordered question content of a quiz.
type Quiz struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Questions      []Question `json:"questions"`
	QuestionTimeMs int64      `json:"questionTimeMs,omitempty"`
}

// QuestionNumber returns the 1-indexed position of questionID within the quiz.
func (q Quiz) QuestionNumber(questionID string) (int, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID == questionID {
			return i + 1, true
		}
	}
	return 0, false
}

// TimeLimitMs returns the per-question answer window.
func (q Quiz) TimeLimitMs() int64 {
	if q.QuestionTimeMs > 0 {
		return q.QuestionTimeMs
	}
	return DefaultQuestionTimeMs
}

// QuizState is the mutable lifecycle of a quiz, kept apart from its cached content.
type QuizState struct {
	QuizID      string     `json:"quizId"`
	Active      bool       `json:"active"`
	Deactivated bool       `json:"deactivated"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
}

// Participant is the identity a user plays a quiz under.
type Participant struct {
	ID          string    `json:"participantId"`
	DisplayName string    `json:"displayName"`
	ShortID     string    `json:"shortId"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// AnswerSubmission is the stored answer of one participant to one question.
// A nil SelectedOption means the question timed out without an answer.
type AnswerSubmission struct {
	ParticipantID     string    `json:"participantId"`
	QuizID            string    `json:"quizId"`
	QuestionID        string    `json:"questionId"`
	QuestionNumber    int       `json:"questionNumber"`
	SelectedOption    *int      `json:"selectedOption"`
	QuestionStartedAt time.Time `json:"questionStartedAt"`
	ResponseTimeMs    int64     `json:"responseTimeMs"`
	SubmittedAt       time.Time `json:"submittedAt"`
}

// AnswerResult summarizes the outcome of an accepted submission.
type AnswerResult struct {
	QuestionID     string `json:"questionId"`
	QuestionNumber int    `json:"questionNumber"`
	Correct        bool   `json:"correct"`
	Awarded        int    `json:"awarded"`
	Progress       int    `json:"progress"`
}

// Reason is the machine-readable code of a gate decision.
type Reason string

const (
	ReasonOpen         Reason = "open"
	ReasonPausePoint   Reason = "pause_point"
	ReasonPausePending Reason = "pause_pending"
	ReasonQuizInactive Reason = "quiz_inactive"
)

// Decision is the gate's answer to "may this participant answer this question now".
// BlockingPausePoint and NextPausePoint are zero when not applicable.
type Decision struct {
	Allowed            bool   `json:"allowed"`
	Reason             Reason `json:"reason"`
	Message            string `json:"message"`
	QuestionNumber     int    `json:"questionNumber"`
	BlockingPausePoint int    `json:"blockingPausePoint,omitempty"`
	NextPausePoint     int    `json:"nextPausePoint,omitempty"`
	CurrentProgress    int    `json:"currentProgress"`
}

// LeaderboardEntry is one ranked participant of an evaluation.
type LeaderboardEntry struct {
	Rank                  int     `json:"rank"`
	ParticipantID         string  `json:"participantId"`
	DisplayName           string  `json:"displayName"`
	Score                 int     `json:"score"`
	CorrectAnswerCount    int     `json:"correctAnswerCount"`
	TotalQuestions        int     `json:"totalQuestions"`
	AverageResponseTimeMs float64 `json:"averageResponseTimeMs"`
	AccuracyPercent       float64 `json:"accuracyPercent"`
}

// LeaderboardStats aggregates a ranked list.
type LeaderboardStats struct {
	Count               int `json:"count"`
	AverageScore        int `json:"averageScore"`
	HighestScore        int `json:"highestScore"`
	LowestScore         int `json:"lowestScore"`
	AverageAccuracy     int `json:"averageAccuracy"`
	AverageResponseTime int `json:"averageResponseTime"`
}

// LeaderboardReport is the immutable result of one evaluation. A newer report for the same
// quiz replaces it.
type LeaderboardReport struct {
	ID                string             `json:"id"`
	QuizID            string             `json:"quizId"`
	Entries           []LeaderboardEntry `json:"entries"`
	Stats             LeaderboardStats   `json:"stats"`
	EvaluatedAt       time.Time          `json:"evaluatedAt"`
	TotalParticipants int                `json:"totalParticipants"`
}

// GateStatus is the operator view of a quiz's pause state and everyone's progress.
type GateStatus struct {
	QuizID      string         `json:"quizId"`
	Paused      bool           `json:"paused"`
	PausePoints []int          `json:"pausePoints"`
	Progress    map[string]int `json:"progress"`
}

// Leaderboard is the provisional standing broadcast to live sessions.
type Leaderboard struct {
	QuizID      string             `json:"quizId"`
	Entries     []LeaderboardEntry `json:"entries"`
	PausePoints []int              `json:"pausePoints"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// IssueCategory groups validation findings.
type IssueCategory string

const (
	IssueMissingFields       IssueCategory = "missing_fields"
	IssueInvalidResponseTime IssueCategory = "invalid_response_time"
	IssueUnknownQuestion     IssueCategory = "unknown_question"
	IssueUnknownParticipant  IssueCategory = "unknown_participant"
	IssueDuplicateAnswer     IssueCategory = "duplicate_answer"
	IssueMissingRound        IssueCategory = "missing_round"
)

// IssueCategories lists every category in report order.
var IssueCategories = []IssueCategory{
	IssueMissingFields,
	IssueInvalidResponseTime,
	IssueUnknownQuestion,
	IssueUnknownParticipant,
	IssueDuplicateAnswer,
	IssueMissingRound,
}

// ValidationIssue is a single integrity finding.
type ValidationIssue struct {
	ParticipantID string `json:"participantId,omitempty"`
	QuestionID    string `json:"questionId,omitempty"`
	Detail        string `json:"detail"`
}

// ValidationCategory holds the findings of one category.
type ValidationCategory struct {
	Category IssueCategory     `json:"category"`
	Count    int               `json:"count"`
	Issues   []ValidationIssue `json:"issues"`
}

// ValidationReport is the diagnostic output of a validation run.
type ValidationReport struct {
	QuizID       string               `json:"quizId"`
	TotalAnswers int                  `json:"totalAnswers"`
	Valid        bool                 `json:"valid"`
	Categories   []ValidationCategory `json:"categories"`
	CheckedAt    time.Time            `json:"checkedAt"`
}
