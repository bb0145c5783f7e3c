package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestTargetScopeDefaultsToUser(t *testing.T) {
	scope, err := Target{}.Scope()
	require.NoError(t, err)
	assert.Equal(t, ScopeUser, scope)
}

func TestTargetScopeSingleFieldSet(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   Scope
	}{
		{name: "user", target: Target{UserID: intPtr(1)}, want: ScopeUser},
		{name: "course member", target: Target{CourseMemberID: intPtr(1)}, want: ScopeCourseMember},
		{name: "submission group", target: Target{SubmissionGroupID: intPtr(1)}, want: ScopeSubmissionGroup},
		{name: "course group", target: Target{CourseGroupID: intPtr(1)}, want: ScopeCourseGroup},
		{name: "course content", target: Target{CourseContentID: intPtr(1)}, want: ScopeCourseContent},
		{name: "course", target: Target{CourseID: intPtr(1)}, want: ScopeCourse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := tt.target.Scope()
			require.NoError(t, err)
			assert.Equal(t, tt.want, scope)
		})
	}
}

func TestTargetScopeRejectsMultipleFields(t *testing.T) {
	_, err := Target{UserID: intPtr(1), CourseID: intPtr(2)}.Scope()
	assert.Error(t, err)
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantOK  bool
		wantTag TagFilter
	}{
		{name: "valid tag", token: "#course::123", wantOK: true, wantTag: TagFilter{Scope: ScopeCourse, Value: "123"}},
		{name: "wildcard value", token: "#course_group::*", wantOK: true, wantTag: TagFilter{Scope: ScopeCourseGroup, Value: "*"}},
		{name: "missing hash prefix", token: "course::123", wantOK: false},
		{name: "missing separator", token: "#course", wantOK: false},
		{name: "empty scope", token: "#::123", wantOK: false},
		{name: "empty value", token: "#course::", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, ok := ParseTag(tt.token)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantTag, tag)
			}
		})
	}
}
