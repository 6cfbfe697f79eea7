package submit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"screenline/internal/domain"
	"screenline/internal/scoring"
)

// Constants carried on every outbound payload.
const (
	DefaultSourceTag     = "STOP-BANG Assessment"
	statusNewRequest     = "new-consultation-request"
	consultationType     = "initial free consultation"
	preferredContactTime = "business hours"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func answerString(a domain.AnswerSet, q domain.QuestionID) string {
	return yesNo(a.Yes(q))
}

// BuildPayload assembles the immutable outbound document for one submission
// attempt. The session id is minted fresh here: retries never reuse one.
func BuildPayload(p domain.SubjectProfile, a domain.AnswerSet, now time.Time, sourceTag string, client domain.ClientContext) domain.SubmissionPayload {
	if sourceTag == "" {
		sourceTag = DefaultSourceTag
	}
	res := scoring.Evaluate(p, a)
	return domain.SubmissionPayload{
		Name:  p.Name,
		Age:   p.Age,
		Phone: p.Phone,
		Sex:   string(p.Sex),

		WeightKg:    p.WeightKg,
		HeightCm:    p.HeightCm,
		BMI:         fmt.Sprintf("%.1f", res.BodyMassIndex),
		BMICategory: res.BMICategory,

		Snoring:           answerString(a, domain.QuestionSnoring),
		Tiredness:         answerString(a, domain.QuestionTiredness),
		ObservedApnea:     answerString(a, domain.QuestionObservedApnea),
		Hypertension:      answerString(a, domain.QuestionHypertension),
		NeckCircumference: answerString(a, domain.QuestionNeckCircumference),

		AgeRisk: yesNo(p.Age > 50),
		BMIRisk: yesNo(res.BodyMassIndex > 35),
		SexRisk: yesNo(p.Sex == domain.SexMale),

		TotalScore:     res.RawScore,
		MaxScore:       res.MaxScore,
		RiskLevel:      res.RiskLevel,
		RiskCategory:   res.RiskCategory,
		Priority:       res.Priority,
		FollowUpNeeded: yesNo(res.FollowUpNeeded),

		Status:               statusNewRequest,
		ConsultationType:     consultationType,
		PreferredContactTime: preferredContactTime,

		SubmittedAt: now.UTC().Format(time.RFC3339),
		SessionID:   uuid.New().String(),
		SourceTag:   sourceTag,
		Client:      client,
	}
}
