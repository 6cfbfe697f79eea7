package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"screenline/internal/domain"
	"screenline/internal/report"
)

// EmailSink posts a rendered report to an email delivery webhook.
type EmailSink struct {
	URL    string
	APIKey string
	To     string
	From   string
	Client *http.Client
}

func (s *EmailSink) Name() string { return "email" }

type emailMessage struct {
	To       string   `json:"to"`
	From     string   `json:"from"`
	Subject  string   `json:"subject"`
	HTML     string   `json:"html"`
	Tags     []string `json:"tags"`
	Priority string   `json:"priority"`
}

type emailResponse struct {
	ID string `json:"id"`
}

func transportPriority(p domain.RiskLevel) string {
	switch p {
	case domain.RiskHigh:
		return "high"
	case domain.RiskMedium:
		return "normal"
	default:
		return "low"
	}
}

func (s *EmailSink) Send(ctx context.Context, p domain.SubmissionPayload) (Response, error) {
	if s.APIKey == "" || s.URL == "" {
		return Response{}, errors.New("email service not configured")
	}
	html, err := report.HTML(p)
	if err != nil {
		return Response{}, err
	}
	msg := emailMessage{
		To:       s.To,
		From:     s.From,
		Subject:  fmt.Sprintf("New consultation request - %s (%s priority)", p.Name, p.Priority),
		HTML:     html,
		Tags:     []string{"consultation-request", "screenline", string(p.Priority)},
		Priority: transportPriority(p.Priority),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(data))
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
	var body emailResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Response{}, fmt.Errorf("unparsable email response: %w", err)
	}
	return Response{ID: body.ID}, nil
}
