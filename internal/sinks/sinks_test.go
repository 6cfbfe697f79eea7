package sinks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"screenline/internal/domain"
)

func samplePayload() domain.SubmissionPayload {
	return domain.SubmissionPayload{
		Name:              "Ahmed",
		Age:               55,
		Phone:             "0501234567",
		Sex:               "male",
		WeightKg:          100,
		HeightCm:          170,
		BMI:               "34.6",
		BMICategory:       domain.BMIObese,
		Snoring:           "yes",
		Tiredness:         "yes",
		ObservedApnea:     "no",
		Hypertension:      "yes",
		NeckCircumference: "no",
		AgeRisk:           "yes",
		BMIRisk:           "no",
		SexRisk:           "yes",
		TotalScore:        5,
		MaxScore:          8,
		RiskLevel:         domain.RiskMedium,
		RiskCategory:      "intermediate probability of obstructive sleep apnea",
		Priority:          domain.RiskMedium,
		FollowUpNeeded:    "yes",
		Status:            "new-consultation-request",
		SubmittedAt:       "2024-06-01T12:00:00Z",
		SessionID:         "sess-123",
		SourceTag:         "STOP-BANG Assessment",
		Client:            domain.ClientContext{UserAgent: "ua", Referrer: "ref"},
	}
}

func TestSheetsSendSuccess(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode row: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
	}))
	defer srv.Close()

	s := &SheetsSink{URL: srv.URL, Client: srv.Client()}
	resp, err := s.Send(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.ID != "sess-123" {
		t.Fatalf("id = %q", resp.ID)
	}
	if got["gender"] != "male" || got["bloodPressure"] != "yes" || got["apnea"] != "no" {
		t.Fatalf("row columns not renamed: %v", got)
	}
	if got["sessionId"] != "sess-123" {
		t.Fatalf("sessionId = %v", got["sessionId"])
	}
}

func TestSheetsRejectsNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>redirect page</html>"))
	}))
	defer srv.Close()

	s := &SheetsSink{URL: srv.URL, Client: srv.Client()}
	if _, err := s.Send(context.Background(), samplePayload()); err == nil {
		t.Fatalf("non-JSON body must fail the delivery")
	}
}

func TestSheetsUnconfigured(t *testing.T) {
	s := &SheetsSink{}
	if _, err := s.Send(context.Background(), samplePayload()); err == nil {
		t.Fatalf("missing url must fail before any network call")
	}
}

func TestEmailSendSuccess(t *testing.T) {
	var msg emailMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer key-1" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode message: %v", err)
		}
		json.NewEncoder(w).Encode(emailResponse{ID: "email-9"})
	}))
	defer srv.Close()

	s := &EmailSink{URL: srv.URL, APIKey: "key-1", To: "clinic@example.com", From: "noreply@example.com", Client: srv.Client()}
	resp, err := s.Send(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.ID != "email-9" {
		t.Fatalf("id = %q", resp.ID)
	}
	if msg.To != "clinic@example.com" || msg.Priority != "normal" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.HTML == "" {
		t.Fatalf("report body missing")
	}
}

func TestEmailErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := &EmailSink{URL: srv.URL, APIKey: "key-1", Client: srv.Client()}
	_, err := s.Send(context.Background(), samplePayload())
	if err == nil {
		t.Fatalf("non-2xx must fail")
	}
	if want := "status 429: rate limited"; err.Error() != want {
		t.Fatalf("err = %q, want %q", err.Error(), want)
	}
}

func TestEmailUnconfigured(t *testing.T) {
	s := &EmailSink{URL: "http://example.com"}
	if _, err := s.Send(context.Background(), samplePayload()); err == nil {
		t.Fatalf("missing api key must fail before any network call")
	}
}

func TestTransportPriority(t *testing.T) {
	if got := transportPriority(domain.RiskHigh); got != "high" {
		t.Fatalf("high -> %q", got)
	}
	if got := transportPriority(domain.RiskMedium); got != "normal" {
		t.Fatalf("medium -> %q", got)
	}
	if got := transportPriority(domain.RiskLow); got != "low" {
		t.Fatalf("low -> %q", got)
	}
}

func TestRecordsSendSuccess(t *testing.T) {
	var req recordsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/base-1/Consultations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]string{{"id": "rec-42"}},
		})
	}))
	defer srv.Close()

	s := &RecordsSink{APIKey: "tok", BaseID: "base-1", BaseURL: srv.URL, Client: srv.Client()}
	resp, err := s.Send(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.ID != "rec-42" {
		t.Fatalf("id = %q", resp.ID)
	}
	if len(req.Records) != 1 {
		t.Fatalf("records = %d", len(req.Records))
	}
	fields := req.Records[0].Fields
	if fields["Gender"] != "male" || fields["Session ID"] != "sess-123" || fields["User Agent"] != "ua" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestRecordsEmptyResponseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"records": []any{}})
	}))
	defer srv.Close()

	s := &RecordsSink{APIKey: "tok", BaseID: "base-1", BaseURL: srv.URL, Client: srv.Client()}
	if _, err := s.Send(context.Background(), samplePayload()); err == nil {
		t.Fatalf("empty records response must fail")
	}
}

func TestRecordsUnconfigured(t *testing.T) {
	s := &RecordsSink{APIKey: "tok"}
	if _, err := s.Send(context.Background(), samplePayload()); err == nil {
		t.Fatalf("missing base id must fail before any network call")
	}
}
