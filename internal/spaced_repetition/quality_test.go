package spaced_repetition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeQuality(t *testing.T) {
	tests := []struct {
		grade Grade
		want  float64
		pass  bool
	}{
		{GradeBlackout, 0, false},
		{GradeIncorrect, 0.2, false},
		{GradeIncorrectFamiliar, 0.4, false},
		{GradeCorrectDifficult, 0.6, true},
		{GradeCorrectHesitation, 0.8, true},
		{GradePerfect, 1, true},
	}
	for _, tt := range tests {
		q, err := tt.grade.Quality()
		require.NoError(t, err)
		assert.InDelta(t, tt.want, q, 1e-12, "grade %d", tt.grade)
		assert.Equal(t, tt.pass, IsPass(q), "grade %d", tt.grade)
	}

	_, err := Grade(6).Quality()
	assert.Error(t, err)
	_, err = Grade(-1).Quality()
	assert.Error(t, err)
}
