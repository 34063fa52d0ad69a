package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCompletedGradeAliases(t *testing.T) {
	a0, ok := ParseCompletedGrade("A0")
	assert.True(t, ok)
	a, ok := ParseCompletedGrade("A")
	assert.True(t, ok)
	assert.Equal(t, a0, a)
	assert.Equal(t, GradeAZero, a)
}

func TestParseCompletedGradeUnknownFallsBackToF(t *testing.T) {
	g, ok := ParseCompletedGrade("Z")
	assert.False(t, ok)
	assert.Equal(t, GradeF, g)
}

func TestClampGPA(t *testing.T) {
	assert.Equal(t, 0.0, ClampGPA(-1))
	assert.Equal(t, MaxGPA, ClampGPA(5))
	assert.Equal(t, 3.75, ClampGPA(3.75))
}
