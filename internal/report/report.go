// Package report renders a SubmissionPayload for humans: the HTML document
// attached to the notification email and a CSV export of one assessment.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"strconv"

	"screenline/internal/domain"
)

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>New consultation request</title>
<style>
body { font-family: 'Segoe UI', Tahoma, sans-serif; line-height: 1.6; margin: 0; padding: 20px; background: #f5f5f5; }
.container { max-width: 800px; margin: 0 auto; background: #fff; border-radius: 10px; overflow: hidden; }
.header { background: #2980b9; color: #fff; padding: 20px; text-align: center; }
.header.priority-high { background: #c0392b; }
.header.priority-medium { background: #e67e22; }
.section { margin: 20px; padding: 15px; border-radius: 8px; border-left: 4px solid #3498db; background: #f8f9fa; }
.section.risk-high { border-left-color: #e74c3c; }
.section.risk-medium { border-left-color: #f39c12; }
.section.risk-low { border-left-color: #27ae60; }
.score { font-size: 42px; font-weight: bold; color: #2980b9; text-align: center; }
.row { margin: 4px 0; }
.label { font-weight: bold; color: #2c3e50; }
.footer { background: #34495e; color: #fff; padding: 15px; text-align: center; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
  <div class="header priority-{{.Priority}}">
    <h1>New consultation request</h1>
    <p>{{.SourceTag}}</p>
    <p><span class="label">Submitted:</span> {{.SubmittedAt}}</p>
  </div>
  <div class="section">
    <h3>Subject</h3>
    <div class="row"><span class="label">Name:</span> {{.Name}}</div>
    <div class="row"><span class="label">Age:</span> {{.Age}}</div>
    <div class="row"><span class="label">Phone:</span> {{.Phone}}</div>
    <div class="row"><span class="label">Sex:</span> {{.Sex}}</div>
  </div>
  <div class="section risk-{{.RiskLevel}}">
    <h3>Risk assessment</h3>
    <div class="score">{{.TotalScore}}/{{.MaxScore}}</div>
    <div class="row"><span class="label">Risk level:</span> {{.RiskLevel}}</div>
    <div class="row">{{.RiskCategory}}</div>
    <div class="row"><span class="label">Priority:</span> {{.Priority}}</div>
    <div class="row"><span class="label">Follow-up needed:</span> {{.FollowUpNeeded}}</div>
  </div>
  <div class="section">
    <h3>Health metrics</h3>
    <div class="row"><span class="label">Weight:</span> {{.WeightKg}} kg</div>
    <div class="row"><span class="label">Height:</span> {{.HeightCm}} cm</div>
    <div class="row"><span class="label">BMI:</span> {{.BMI}} ({{.BMICategory}})</div>
  </div>
  <div class="section">
    <h3>Questionnaire</h3>
    <div class="row"><span class="label">Snoring:</span> {{.Snoring}}</div>
    <div class="row"><span class="label">Tiredness:</span> {{.Tiredness}}</div>
    <div class="row"><span class="label">Observed apnea:</span> {{.ObservedApnea}}</div>
    <div class="row"><span class="label">Hypertension:</span> {{.Hypertension}}</div>
    <div class="row"><span class="label">Neck circumference &gt; 40cm:</span> {{.NeckCircumference}}</div>
  </div>
  <div class="section">
    <h3>Next steps</h3>
    <div class="row"><span class="label">Consultation type:</span> {{.ConsultationType}}</div>
    <div class="row"><span class="label">Preferred contact time:</span> {{.PreferredContactTime}}</div>
    <div class="row"><a href="tel:{{.Phone}}">Call the subject</a></div>
  </div>
  <div class="section">
    <h3>Session</h3>
    <div class="row"><span class="label">Session id:</span> {{.SessionID}}</div>
    <div class="row"><span class="label">Source:</span> {{.SourceTag}}</div>
  </div>
  <div class="footer">Sent automatically by the screening platform.</div>
</div>
</body>
</html>
`))

// HTML renders the operator-facing report document for the email sink.
func HTML(p domain.SubmissionPayload) (string, error) {
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// CSV renders a single-record export of the assessment: one header row,
// one value row.
func CSV(p domain.SubmissionPayload) (string, error) {
	columns := [][2]string{
		{"name", p.Name},
		{"age", strconv.Itoa(p.Age)},
		{"phone", p.Phone},
		{"sex", p.Sex},
		{"weight_kg", strconv.FormatFloat(p.WeightKg, 'f', -1, 64)},
		{"height_cm", strconv.FormatFloat(p.HeightCm, 'f', -1, 64)},
		{"bmi", p.BMI},
		{"bmi_category", string(p.BMICategory)},
		{"snoring", p.Snoring},
		{"tiredness", p.Tiredness},
		{"observed_apnea", p.ObservedApnea},
		{"hypertension", p.Hypertension},
		{"neck_circumference", p.NeckCircumference},
		{"age_risk", p.AgeRisk},
		{"bmi_risk", p.BMIRisk},
		{"sex_risk", p.SexRisk},
		{"total_score", fmt.Sprintf("%d/%d", p.TotalScore, p.MaxScore)},
		{"risk_level", string(p.RiskLevel)},
		{"priority", string(p.Priority)},
		{"follow_up_needed", p.FollowUpNeeded},
		{"submitted_at", p.SubmittedAt},
		{"session_id", p.SessionID},
	}
	header := make([]string, len(columns))
	values := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c[0]
		values[i] = c[1]
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", err
	}
	if err := w.Write(values); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
