package spaced_repetition

import "fmt"

// Grade is a recall grade on the classic 0 to 5 SuperMemo scale
type Grade int

const (
	// Complete blackout, unable to recall
	GradeBlackout Grade = 0
	// Incorrect response but remembered upon seeing the correct answer
	GradeIncorrect Grade = 1
	// Incorrect response but the correct answer felt familiar
	GradeIncorrectFamiliar Grade = 2
	// Correct response but required significant effort
	GradeCorrectDifficult Grade = 3
	// Correct response after some hesitation
	GradeCorrectHesitation Grade = 4
	// Perfect response with no hesitation
	GradePerfect Grade = 5
)

// Quality maps the grade onto the [0, 1] quality scale. Grade 3 lands
// exactly on PassThreshold, so grades of 3 and above pass.
func (g Grade) Quality() (float64, error) {
	if g < GradeBlackout || g > GradePerfect {
		return 0, fmt.Errorf("grade %d outside [0, 5]", int(g))
	}
	return float64(g) / float64(GradePerfect), nil
}
