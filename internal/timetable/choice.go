package timetable

import "fmt"

// ChoiceConstraints are the form-level limits applied to one staff member's
// own subject selections. They operate on the submitted choices only, not on
// the full schedule.
type ChoiceConstraints struct {
	MinCore      int `json:"minCore"`
	MaxElectives int `json:"maxElectives"`
	MaxCredits   int `json:"maxCredits"`
	MaxLabs      int `json:"maxLabs"`
}

// ValidateChoices checks a staff member's subject selections against the
// form constraints, reusing the engine's Violation shape so the UI renders
// both the same way.
func ValidateChoices(member Staff, selections []Subject, cc ChoiceConstraints) []Violation {
	var violations []Violation

	var core, electives, labs, credits int
	for _, subject := range selections {
		switch subject.Type {
		case SubjectCore:
			core++
		case SubjectElective:
			electives++
		case SubjectLab:
			labs++
		}
		credits += subject.Credits

		if !member.QualifiedFor(subject.ID) {
			violations = append(violations, Violation{
				Rule: RuleQualification, Severity: SeverityHigh, Hard: true,
				Message: fmt.Sprintf("%s is not qualified for %s", member.Name, subject.Code),
			})
		}
	}

	if cc.MinCore > 0 && core < cc.MinCore {
		violations = append(violations, Violation{
			Rule: RuleMinCore, Severity: SeverityMedium, Hard: true,
			Message: fmt.Sprintf("at least %d core subjects required, selected %d", cc.MinCore, core),
		})
	}
	if cc.MaxElectives > 0 && electives > cc.MaxElectives {
		violations = append(violations, Violation{
			Rule: RuleMaxElectives, Severity: SeverityMedium, Hard: true,
			Message: fmt.Sprintf("at most %d electives allowed, selected %d", cc.MaxElectives, electives),
		})
	}
	if cc.MaxLabs > 0 && labs > cc.MaxLabs {
		violations = append(violations, Violation{
			Rule: RuleMaxLabs, Severity: SeverityMedium, Hard: true,
			Message: fmt.Sprintf("at most %d labs allowed, selected %d", cc.MaxLabs, labs),
		})
	}
	if cc.MaxCredits > 0 && credits > cc.MaxCredits {
		violations = append(violations, Violation{
			Rule: RuleMaxCredits, Severity: SeverityMedium, Hard: true,
			Message: fmt.Sprintf("credit total %d exceeds the limit of %d", credits, cc.MaxCredits),
		})
	}
	return violations
}
