// Package scoring implements the STOP-BANG risk calculation. Everything here
// is a pure function of (profile, answers): no I/O, no clock, no state.
package scoring

import (
	"screenline/internal/domain"
)

const MaxScore = 8

// BMI computes weight(kg) / (height(cm)/100)^2. Returns 0 when either
// measurement is missing so callers can treat an incomplete profile as
// simply not contributing a BMI point.
func BMI(weightKg, heightCm float64) float64 {
	if weightKg <= 0 || heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return weightKg / (m * m)
}

// BMICategory buckets a BMI value. Boundaries are closed on the lower end:
// 18.5 is normal, 25.0 is overweight, 30.0 is obese.
func BMICategory(bmi float64) domain.BMICategory {
	switch {
	case bmi < 18.5:
		return domain.BMIUnderweight
	case bmi < 25:
		return domain.BMINormal
	case bmi < 30:
		return domain.BMIOverweight
	default:
		return domain.BMIObese
	}
}

// riskCategories are the outward-facing labels per risk level.
var riskCategories = map[domain.RiskLevel]string{
	domain.RiskLow:    "low probability of obstructive sleep apnea",
	domain.RiskMedium: "intermediate probability of obstructive sleep apnea",
	domain.RiskHigh:   "high probability of obstructive sleep apnea",
}

// Evaluate scores a profile and answer set. It is total: missing answers
// contribute 0 rather than erroring, and calling it twice with the same
// inputs yields an identical Assessment.
func Evaluate(p domain.SubjectProfile, a domain.AnswerSet) domain.Assessment {
	bmi := BMI(p.WeightKg, p.HeightCm)

	score := 0
	for _, q := range domain.Questions {
		if a.Yes(q) {
			score++
		}
	}
	if bmi > 35 {
		score++
	}
	if p.Age > 50 {
		score++
	}
	if p.Sex == domain.SexMale {
		score++
	}

	level := riskLevel(score)
	return domain.Assessment{
		BodyMassIndex:  bmi,
		BMICategory:    BMICategory(bmi),
		RawScore:       score,
		MaxScore:       MaxScore,
		RiskLevel:      level,
		RiskCategory:   riskCategories[level],
		Priority:       priority(score),
		FollowUpNeeded: score > 3,
	}
}

func riskLevel(score int) domain.RiskLevel {
	switch {
	case score <= 3:
		return domain.RiskLow
	case score <= 5:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

// priority shares riskLevel's thresholds but is a separate field in the
// outbound contract, so it is computed on its own.
func priority(score int) domain.RiskLevel {
	switch {
	case score >= 6:
		return domain.RiskHigh
	case score >= 4:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
