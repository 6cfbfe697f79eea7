package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"screenline/internal/domain"
)

const defaultRecordsBaseURL = "https://api.airtable.com/v0"

// RecordsSink creates one row in an Airtable-style record store. Every
// payload field maps 1:1 to a named column.
type RecordsSink struct {
	APIKey string
	BaseID string
	Table  string
	// BaseURL overrides the service endpoint, mainly for tests.
	BaseURL string
	Client  *http.Client
}

func (s *RecordsSink) Name() string { return "records" }

type recordsRequest struct {
	Records []recordEntry `json:"records"`
}

type recordEntry struct {
	Fields map[string]any `json:"fields"`
}

type recordsResponse struct {
	Records []struct {
		ID string `json:"id"`
	} `json:"records"`
}

func recordFields(p domain.SubmissionPayload) map[string]any {
	return map[string]any{
		"Name":                   p.Name,
		"Age":                    p.Age,
		"Phone":                  p.Phone,
		"Gender":                 p.Sex,
		"Weight (kg)":            p.WeightKg,
		"Height (cm)":            p.HeightCm,
		"BMI":                    p.BMI,
		"BMI Category":           string(p.BMICategory),
		"Snoring":                p.Snoring,
		"Tiredness":              p.Tiredness,
		"Observed Apnea":         p.ObservedApnea,
		"Blood Pressure":         p.Hypertension,
		"Neck Circumference":     p.NeckCircumference,
		"Age Risk":               p.AgeRisk,
		"BMI Risk":               p.BMIRisk,
		"Gender Risk":            p.SexRisk,
		"Total Score":            p.TotalScore,
		"Max Score":              p.MaxScore,
		"Risk Level":             string(p.RiskLevel),
		"Risk Category":          p.RiskCategory,
		"Priority":               string(p.Priority),
		"Follow Up Needed":       p.FollowUpNeeded,
		"Status":                 p.Status,
		"Consultation Type":      p.ConsultationType,
		"Preferred Contact Time": p.PreferredContactTime,
		"Submission Date":        p.SubmittedAt,
		"Source":                 p.SourceTag,
		"Session ID":             p.SessionID,
		"User Agent":             p.Client.UserAgent,
		"Referrer":               p.Client.Referrer,
	}
}

func (s *RecordsSink) Send(ctx context.Context, p domain.SubmissionPayload) (Response, error) {
	if s.APIKey == "" || s.BaseID == "" {
		return Response{}, errors.New("record store not configured")
	}
	base := s.BaseURL
	if base == "" {
		base = defaultRecordsBaseURL
	}
	table := s.Table
	if table == "" {
		table = "Consultations"
	}
	endpoint := fmt.Sprintf("%s/%s/%s", base, s.BaseID, url.PathEscape(table))

	data, err := json.Marshal(recordsRequest{Records: []recordEntry{{Fields: recordFields(p)}}})
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")
	res, err := newClient(s.Client).Do(req)
	if err != nil {
		return Response{}, err
	}
	defer res.Body.Close()
	if err := checkStatus(res); err != nil {
		return Response{}, err
	}
	var body recordsResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Response{}, fmt.Errorf("unparsable record store response: %w", err)
	}
	if len(body.Records) == 0 {
		return Response{}, errors.New("record store returned no created record")
	}
	return Response{ID: body.Records[0].ID}, nil
}
