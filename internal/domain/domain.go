package domain

// Step identifies a wizard step, 1-based.
type Step int

const (
	StepProfile       Step = 1
	StepMetrics       Step = 2
	StepQuestionnaire Step = 3
	StepResults       Step = 4
)

func (s Step) Valid() bool { return s >= StepProfile && s <= StepResults }

// SubmissionState tracks the results sub-state machine.
type SubmissionState string

const (
	SubmissionIdle       SubmissionState = "idle"
	SubmissionSubmitting SubmissionState = "submitting"
	SubmissionSubmitted  SubmissionState = "submitted"
	SubmissionFailed     SubmissionState = "failed"
)

type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// SubjectProfile is the screened person's intake data (steps 1 and 2).
type SubjectProfile struct {
	Name     string  `json:"name"`
	Age      int     `json:"age"`
	Phone    string  `json:"phone"`
	Sex      Sex     `json:"sex,omitempty" enum:"male,female"`
	WeightKg float64 `json:"weight_kg,omitempty"`
	HeightCm float64 `json:"height_cm,omitempty"`
}

// Empty reports whether no field has been filled in yet.
func (p SubjectProfile) Empty() bool {
	return p == SubjectProfile{}
}

type QuestionID string

const (
	QuestionSnoring           QuestionID = "snoring"
	QuestionTiredness         QuestionID = "tiredness"
	QuestionObservedApnea     QuestionID = "observedApnea"
	QuestionHypertension      QuestionID = "hypertension"
	QuestionNeckCircumference QuestionID = "neckCircumference"
)

// Questions lists the five questionnaire items in display order.
var Questions = []QuestionID{
	QuestionSnoring,
	QuestionTiredness,
	QuestionObservedApnea,
	QuestionHypertension,
	QuestionNeckCircumference,
}

func KnownQuestion(id QuestionID) bool {
	for _, q := range Questions {
		if q == id {
			return true
		}
	}
	return false
}

type Answer string

const (
	AnswerYes Answer = "yes"
	AnswerNo  Answer = "no"
)

// AnswerSet maps question ids to answers; a missing key means unanswered.
type AnswerSet map[QuestionID]Answer

// Complete reports whether every known question has been answered.
func (a AnswerSet) Complete() bool {
	for _, q := range Questions {
		if _, ok := a[q]; !ok {
			return false
		}
	}
	return true
}

// Yes reports whether the question was answered yes. Unanswered counts as no.
func (a AnswerSet) Yes(q QuestionID) bool {
	return a[q] == AnswerYes
}

// Clone returns an independent copy so callers cannot alias wizard state.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

type BMICategory string

const (
	BMIUnderweight BMICategory = "underweight"
	BMINormal      BMICategory = "normal"
	BMIOverweight  BMICategory = "overweight"
	BMIObese       BMICategory = "obese"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Assessment is the scored screening result. It is derived from
// (SubjectProfile, AnswerSet) and recomputed on demand, never stored.
type Assessment struct {
	BodyMassIndex  float64     `json:"body_mass_index"`
	BMICategory    BMICategory `json:"bmi_category" enum:"underweight,normal,overweight,obese"`
	RawScore       int         `json:"raw_score" minimum:"0" maximum:"8"`
	MaxScore       int         `json:"max_score"`
	RiskLevel      RiskLevel   `json:"risk_level" enum:"low,medium,high"`
	RiskCategory   string      `json:"risk_category"`
	Priority       RiskLevel   `json:"priority" enum:"low,medium,high"`
	FollowUpNeeded bool        `json:"follow_up_needed"`
}

// ClientContext carries request provenance recorded with a submission.
type ClientContext struct {
	UserAgent string `json:"user_agent,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}

// SubmissionPayload is the immutable outbound document delivered to every
// sink. Built exactly once per submission attempt with a fresh session id.
type SubmissionPayload struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Phone string `json:"phone"`
	Sex   string `json:"sex"`

	WeightKg    float64     `json:"weight_kg"`
	HeightCm    float64     `json:"height_cm"`
	BMI         string      `json:"bmi"`
	BMICategory BMICategory `json:"bmi_category"`

	Snoring           string `json:"snoring"`
	Tiredness         string `json:"tiredness"`
	ObservedApnea     string `json:"observed_apnea"`
	Hypertension      string `json:"hypertension"`
	NeckCircumference string `json:"neck_circumference"`

	AgeRisk string `json:"age_risk"`
	BMIRisk string `json:"bmi_risk"`
	SexRisk string `json:"sex_risk"`

	TotalScore     int       `json:"total_score"`
	MaxScore       int       `json:"max_score"`
	RiskLevel      RiskLevel `json:"risk_level"`
	RiskCategory   string    `json:"risk_category"`
	Priority       RiskLevel `json:"priority"`
	FollowUpNeeded string    `json:"follow_up_needed"`

	Status               string `json:"status"`
	ConsultationType     string `json:"consultation_type"`
	PreferredContactTime string `json:"preferred_contact_time"`

	SubmittedAt string        `json:"submitted_at" format:"date-time"`
	SessionID   string        `json:"session_id"`
	SourceTag   string        `json:"source_tag"`
	Client      ClientContext `json:"client"`
}

// FailedSubmission is the locally archived record written when every sink
// rejects a payload. Operators recover it manually; it is never retried.
type FailedSubmission struct {
	Payload    SubmissionPayload `json:"payload"`
	Errors     []string          `json:"errors"`
	ArchivedAt string            `json:"archived_at" format:"date-time"`
}

// SessionView is the externally visible snapshot of a wizard session.
type SessionView struct {
	ID              string          `json:"id"`
	CurrentStep     Step            `json:"current_step" minimum:"1" maximum:"4"`
	Profile         SubjectProfile  `json:"profile"`
	Answers         AnswerSet       `json:"answers"`
	SubmissionState SubmissionState `json:"submission_state" enum:"idle,submitting,submitted,failed"`
}
