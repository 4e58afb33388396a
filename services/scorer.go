// services/scorer.go - Run Scoring
package services

import "math"

// DefaultTestDurationSeconds is the fixed length of one timed run. WPM is
// always derived from this constant, not from measured wall-clock time.
const DefaultTestDurationSeconds = 30

// RunScore is the outcome of scoring one run. Pure data, no persistence.
type RunScore struct {
	CorrectWords int     `json:"correct_words"`
	TotalTyped   int     `json:"total_typed"`
	WPM          float64 `json:"wpm"`
	Accuracy     float64 `json:"accuracy"`
}

// ScoreRun compares the submitted words against the target prompt position by
// position. A dropped or inserted word shifts every later comparison out of
// sync; that is the scoring model, not a defect. The trailing in-progress word
// is just the last element of typed and only counts on an exact match.
func ScoreRun(typed, prompt []string, durationSeconds int) RunScore {
	if durationSeconds <= 0 {
		durationSeconds = DefaultTestDurationSeconds
	}

	correct := 0
	for i, word := range typed {
		if i >= len(prompt) {
			break
		}
		if word == prompt[i] {
			correct++
		}
	}

	wpm := round1(float64(correct) * (60.0 / float64(durationSeconds)))

	accuracy := 0.0
	if len(typed) > 0 {
		accuracy = round2(float64(correct) / float64(len(typed)) * 100.0)
	}

	return RunScore{
		CorrectWords: correct,
		TotalTyped:   len(typed),
		WPM:          wpm,
		Accuracy:     accuracy,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
