package server

import (
	"screenline/internal/domain"
)

// Request payloads

type ProfileUpdateRequest struct {
	Name     *string  `json:"name,omitempty"`
	Age      *int     `json:"age,omitempty" minimum:"0"`
	Phone    *string  `json:"phone,omitempty"`
	Sex      *string  `json:"sex,omitempty" enum:"male,female"`
	WeightKg *float64 `json:"weight_kg,omitempty" minimum:"0"`
	HeightCm *float64 `json:"height_cm,omitempty" minimum:"0"`
}

type AnswerRequest struct {
	Answer string `json:"answer" enum:"yes,no"`
}

type SubmitRequest struct {
	UserAgent string `json:"user_agent,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}

// Response payloads

type SessionResponse struct {
	domain.SessionView
	CanProceed bool `json:"can_proceed"`
}

type NavigateResponse struct {
	Moved   bool            `json:"moved"`
	Session SessionResponse `json:"session"`
}

type SubmitResponse struct {
	Submitted bool   `json:"submitted"`
	SessionID string `json:"session_id"`
}
