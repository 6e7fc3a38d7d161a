package dto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubmissionCreateRequestValidation(t *testing.T) {
	validate := NewValidator()

	valid := SubmissionCreateRequest{
		StudentID:     1,
		StudentName:   "Alice",
		ComponentType: "Essay Writing",
		SubmitText:    "Sports build discipline and teamwork.",
	}
	require.NoError(t, validate.Struct(valid))

	unknown := valid
	unknown.ComponentType = "Poetry"
	require.Error(t, validate.Struct(unknown))

	short := valid
	short.SubmitText = "too short"
	require.Error(t, validate.Struct(short))

	anonymous := valid
	anonymous.StudentID = 0
	require.Error(t, validate.Struct(anonymous))
}

func TestPageQueryNormalize(t *testing.T) {
	require.Equal(t, PageQuery{Page: 1, Size: 20}, PageQuery{}.Normalize())
	require.Equal(t, PageQuery{Page: 3, Size: 100}, PageQuery{Page: 3, Size: 500}.Normalize())
}

func TestRevisionListQueryValidation(t *testing.T) {
	validate := NewValidator()
	require.NoError(t, validate.Struct(RevisionListQuery{Sort: "desc"}))
	require.Error(t, validate.Struct(RevisionListQuery{Sort: "sideways"}))
}
