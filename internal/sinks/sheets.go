package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"screenline/internal/domain"
)

// SheetsSink posts the screening row to a spreadsheet webhook.
type SheetsSink struct {
	URL    string
	Client *http.Client
}

func (s *SheetsSink) Name() string { return "sheets" }

// sheetsRow mirrors the columns the spreadsheet script expects.
type sheetsRow struct {
	Name              string           `json:"name"`
	Age               int              `json:"age"`
	Phone             string           `json:"phone"`
	Gender            string           `json:"gender"`
	Weight            float64          `json:"weight"`
	Height            float64          `json:"height"`
	BMI               string           `json:"bmi"`
	Snoring           string           `json:"snoring"`
	Tiredness         string           `json:"tiredness"`
	Apnea             string           `json:"apnea"`
	BloodPressure     string           `json:"bloodPressure"`
	NeckCircumference string           `json:"neckCircumference"`
	TotalScore        int              `json:"totalScore"`
	RiskLevel         domain.RiskLevel `json:"riskLevel"`
	Status            string           `json:"status"`
	SubmittedAt       string           `json:"submittedAt"`
	SessionID         string           `json:"sessionId"`
}

func (s *SheetsSink) Send(ctx context.Context, p domain.SubmissionPayload) (Response, error) {
	if s.URL == "" {
		return Response{}, errors.New("sheets webhook url not configured")
	}
	row := sheetsRow{
		Name:              p.Name,
		Age:               p.Age,
		Phone:             p.Phone,
		Gender:            p.Sex,
		Weight:            p.WeightKg,
		Height:            p.HeightCm,
		BMI:               p.BMI,
		Snoring:           p.Snoring,
		Tiredness:         p.Tiredness,
		Apnea:             p.ObservedApnea,
		BloodPressure:     p.Hypertension,
		NeckCircumference: p.NeckCircumference,
		TotalScore:        p.TotalScore,
		RiskLevel:         p.RiskLevel,
		Status:            p.Status,
		SubmittedAt:       p.SubmittedAt,
		SessionID:         p.SessionID,
	}
	data, err := json.Marshal(row)
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(data))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := newClient(s.Client).Do(req)
	if err != nil {
		return Response{}, err
	}
	defer res.Body.Close()
	if err := checkStatus(res); err != nil {
		return Response{}, err
	}
	// the webhook replies with a JSON document; anything else is a failure
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Response{}, fmt.Errorf("unparsable sheets response: %w", err)
	}
	return Response{ID: p.SessionID}, nil
}
