package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	s := Defaults()
	require.NoError(t, NewValidator(&s).ValidateAll())
}

func TestScoringWeightsMustSumToOne(t *testing.T) {
	s := Defaults()
	s.ScoringWeights.Dream100.Volume = 0.9 // pushes sum over 1.0
	err := NewValidator(&s).ValidateAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestIntentSemanticWeightMustSumToOne(t *testing.T) {
	s := Defaults()
	s.IntentWeight = 0.9
	s.SemanticWeight = 0.5
	err := NewValidator(&s).ValidateAll()
	require.Error(t, err)
}

func TestValidateSeeds(t *testing.T) {
	assert.NoError(t, ValidateSeeds([]string{"social selling"}))
	assert.NoError(t, ValidateSeeds([]string{"a", "b", "c", "d", "e"}))
	assert.Error(t, ValidateSeeds(nil))
	assert.Error(t, ValidateSeeds([]string{"a", "b", "c", "d", "e", "f"}))
	assert.Error(t, ValidateSeeds([]string{"dup", "dup"}))
	assert.Error(t, ValidateSeeds([]string{""}))
}

func TestValidateTeamMembers(t *testing.T) {
	s := Defaults()
	s.TeamMembers = []TeamMember{{Name: "", Role: "bogus", Capacity: 0}}
	err := NewValidator(&s).ValidateAll()
	require.Error(t, err)
}
