package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func choiceFixture() (Staff, []Subject) {
	member := Staff{
		ID: "st-anand", Name: "Dr. Anand", MaxHoursPerWeek: 16,
		Qualifications: []string{"sub-algo", "sub-os", "sub-elec", "sub-phys-lab"},
	}
	return member, testSubjects()
}

func TestValidateChoicesWithinLimits(t *testing.T) {
	member, subjects := choiceFixture()
	violations := ValidateChoices(member, subjects, ChoiceConstraints{
		MinCore: 2, MaxElectives: 2, MaxCredits: 12, MaxLabs: 1,
	})
	assert.Empty(t, violations)
}

func TestValidateChoicesMinCore(t *testing.T) {
	member, subjects := choiceFixture()
	violations := ValidateChoices(member, subjects[2:], ChoiceConstraints{MinCore: 1})
	require.Len(t, violations, 1)
	assert.Equal(t, RuleMinCore, violations[0].Rule)
}

func TestValidateChoicesMaxCredits(t *testing.T) {
	member, subjects := choiceFixture()
	violations := ValidateChoices(member, subjects, ChoiceConstraints{MaxCredits: 5})
	require.Len(t, violations, 1)
	assert.Equal(t, RuleMaxCredits, violations[0].Rule)
}

func TestValidateChoicesMaxElectivesAndLabs(t *testing.T) {
	member, _ := choiceFixture()
	member.Qualifications = []string{"e1", "e2", "l1", "l2"}
	selections := []Subject{
		{ID: "e1", Code: "E1", Type: SubjectElective, Credits: 2},
		{ID: "e2", Code: "E2", Type: SubjectElective, Credits: 2},
		{ID: "l1", Code: "L1", Type: SubjectLab, Credits: 1},
		{ID: "l2", Code: "L2", Type: SubjectLab, Credits: 1},
	}

	violations := ValidateChoices(member, selections, ChoiceConstraints{MaxElectives: 1, MaxLabs: 1})
	rules := rulesOf(violations)
	assert.Contains(t, rules, RuleMaxElectives)
	assert.Contains(t, rules, RuleMaxLabs)
}

func TestValidateChoicesQualification(t *testing.T) {
	member, subjects := choiceFixture()
	member.Qualifications = []string{"sub-algo"}

	violations := ValidateChoices(member, subjects[:2], ChoiceConstraints{})
	require.Len(t, violations, 1)
	assert.Equal(t, RuleQualification, violations[0].Rule)
	assert.True(t, violations[0].Hard)
}
