package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plan struct {
	RecommendedSteps []struct {
		Step string `json:"step"`
	} `json:"recommendedSteps"`
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"bare", `{"recommendedSteps":[{"step":"Restart VPN client"}]}`, "Restart VPN client"},
		{"prose around", `Sure! Here you go: {"recommendedSteps":[{"step":"Clear cache"}]} Hope it helps.`, "Clear cache"},
		{"fenced", "```json\n{\"recommendedSteps\":[{\"step\":\"Reset password\"}]}\n```", "Reset password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON[plan](tt.response)
			require.NoError(t, err)
			require.Len(t, got.RecommendedSteps, 1)
			assert.Equal(t, tt.want, got.RecommendedSteps[0].Step)
		})
	}
}

func TestParseJSON_Array(t *testing.T) {
	got, err := ParseJSON[[]int]("ranking: [2, 0, 1]")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, got)
}

func TestParseJSON_Errors(t *testing.T) {
	_, err := ParseJSON[plan]("I cannot help with that.")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseJSON[plan]("{ broken")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseJSON[plan](`{"recommendedSteps": "nope"}`)
	assert.ErrorContains(t, err, "failed to unmarshal JSON")
}
