package gate

import (
	"fmt"
	"sort"

	"live-quiz-service/internal/domain"
)

// Decide applies the pause rules to one consistent view of a quiz. points must be strictly
// ascending.
//
//  1. no pause points: allowed
//  2. the question is itself a pause point: blocked for everyone
//  3. the question is at or past the first pause point above the participant's own
//     progress: blocked until that pause point is cleared
//  4. otherwise allowed
func Decide(points []int, progress, questionNumber int) domain.Decision {
	d := domain.Decision{
		Allowed:         true,
		Reason:          domain.ReasonOpen,
		Message:         "answer accepted",
		QuestionNumber:  questionNumber,
		CurrentProgress: progress,
	}
	if len(points) == 0 {
		return d
	}

	i := sort.SearchInts(points, questionNumber)
	if i < len(points) && points[i] == questionNumber {
		d.Allowed = false
		d.Reason = domain.ReasonPausePoint
		d.BlockingPausePoint = questionNumber
		d.NextPausePoint = questionNumber
		d.Message = fmt.Sprintf("question %d is a pause point, try again later", questionNumber)
		return d
	}

	next := sort.SearchInts(points, progress+1)
	if next < len(points) {
		d.NextPausePoint = points[next]
		if questionNumber >= points[next] {
			d.Allowed = false
			d.Reason = domain.ReasonPausePending
			d.BlockingPausePoint = points[next]
			d.Message = fmt.Sprintf("paused at question %d, answers allowed up to question %d", points[next], progress)
		}
	}
	return d
}

// NormalizePausePoints keeps positive values, drops duplicates and sorts ascending. It is
// meant for raw administrator input before SetPausePoints.
func NormalizePausePoints(raw []int) []int {
	seen := make(map[int]struct{}, len(raw))
	out := make([]int, 0, len(raw))
	for _, p := range raw {
		if p <= 0 {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// checkPausePoints rejects non-positive and duplicate values and returns a sorted copy.
func checkPausePoints(points []int) ([]int, error) {
	seen := make(map[int]struct{}, len(points))
	out := make([]int, 0, len(points))
	for _, p := range points {
		if p <= 0 {
			return nil, domain.InvalidInput("pause point %d must be positive", p)
		}
		if _, ok := seen[p]; ok {
			return nil, domain.InvalidInput("duplicate pause point %d", p)
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}
