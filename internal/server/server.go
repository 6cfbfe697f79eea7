// Package server exposes the screening wizard over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"screenline/internal/domain"
	"screenline/internal/submit"
	"screenline/internal/wizard"
)

// Config for the HTTP API handler.
type Config struct {
	Registry     *Registry
	Orchestrator *submit.Orchestrator
	Logger       *zap.Logger
	BasePath     string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"session_locked"`
	Message string         `json:"message" example:"session locked: submission already initiated"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Screenline API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Registry == nil {
		return nil, errors.New("server: registry is required")
	}
	if cfg.Orchestrator == nil {
		return nil, errors.New("server: orchestrator is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	if cfg.Logger != nil {
		router.Use(requestLogger(cfg.Logger))
	}
	hcfg := huma.DefaultConfig("Screenline API", "0.1.0")
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerSessions(group, cfg)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	default:
		return "internal_error"
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se *apiError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, ErrSessionNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, wizard.ErrLocked) {
		return newAPIError(http.StatusConflict, "session_locked", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "submission already"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "incomplete"):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", msg, nil)
	case strings.Contains(lowered, "unknown question"),
		strings.Contains(lowered, "invalid answer"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", msg, nil)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			log.Debug("request handled",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path))
		})
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func sessionView(id string, sess *wizard.Session) SessionResponse {
	return SessionResponse{
		SessionView: domain.SessionView{
			ID:              id,
			CurrentStep:     sess.Step(),
			Profile:         sess.Profile(),
			Answers:         sess.Answers(),
			SubmissionState: sess.SubmissionState(),
		},
		CanProceed: sess.CanProceed(),
	}
}

func registerSessions(api huma.API, cfg Config) {
	type SessionPath struct {
		SessionID string `path:"session_id"`
	}
	type sessionBody struct {
		Body SessionResponse `json:"body"`
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/sessions",
		Summary:       "Start a screening session",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, _ *struct{}) (*sessionBody, error) {
		id, sess := cfg.Registry.Create(ctx)
		return &sessionBody{Body: sessionView(id, sess)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}",
		Summary:     "Session snapshot",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *SessionPath) (*sessionBody, error) {
		var out SessionResponse
		err := cfg.Registry.With(ctx, input.SessionID, func(sess *wizard.Session) error {
			out = sessionView(input.SessionID, sess)
			return nil
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionBody{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPatch,
		Path:        "/sessions/{session_id}/profile",
		Summary:     "Update profile fields",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		SessionPath
		Body ProfileUpdateRequest `json:"body"`
	}) (*sessionBody, error) {
		var out SessionResponse
		err := cfg.Registry.With(ctx, input.SessionID, func(sess *wizard.Session) error {
			upd := wizard.ProfileUpdate{
				Name:     input.Body.Name,
				Age:      input.Body.Age,
				Phone:    input.Body.Phone,
				WeightKg: input.Body.WeightKg,
				HeightCm: input.Body.HeightCm,
			}
			if input.Body.Sex != nil {
				sex := domain.Sex(*input.Body.Sex)
				upd.Sex = &sex
			}
			if err := sess.ApplyProfile(upd); err != nil {
				return err
			}
			out = sessionView(input.SessionID, sess)
			return nil
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionBody{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-answer",
		Method:      http.MethodPut,
		Path:        "/sessions/{session_id}/answers/{question}",
		Summary:     "Answer one questionnaire item",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		SessionPath
		Question string        `path:"question"`
		Body     AnswerRequest `json:"body"`
	}) (*sessionBody, error) {
		var out SessionResponse
		err := cfg.Registry.With(ctx, input.SessionID, func(sess *wizard.Session) error {
			if err := sess.SetAnswer(domain.QuestionID(input.Question), domain.Answer(input.Body.Answer)); err != nil {
				return err
			}
			out = sessionView(input.SessionID, sess)
			return nil
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionBody{Body: out}, nil
	})

	registerNavigate := func(opID, pathSuffix, summary string, move func(sess *wizard.Session, ctx context.Context) bool) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        "/sessions/{session_id}/" + pathSuffix,
			Summary:     summary,
			Errors:      []int{http.StatusNotFound},
		}, func(ctx context.Context, input *SessionPath) (*struct {
			Body NavigateResponse `json:"body"`
		}, error) {
			var out NavigateResponse
			err := cfg.Registry.With(ctx, input.SessionID, func(sess *wizard.Session) error {
				out.Moved = move(sess, ctx)
				out.Session = sessionView(input.SessionID, sess)
				return nil
			})
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body NavigateResponse `json:"body"`
			}{Body: out}, nil
		})
	}
	registerNavigate("next-step", "next", "Advance to the next step when its gate passes",
		func(sess *wizard.Session, ctx context.Context) bool { return sess.Next(ctx) })
	registerNavigate("prev-step", "prev", "Go back one step",
		func(sess *wizard.Session, ctx context.Context) bool { return sess.Prev(ctx) })

	huma.Register(api, huma.Operation{
		OperationID: "restart-session",
		Method:      http.MethodPost,
		Path:        "/sessions/{session_id}/restart",
		Summary:     "Reset the session to an empty first step",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *SessionPath) (*sessionBody, error) {
		var out SessionResponse
		err := cfg.Registry.With(ctx, input.SessionID, func(sess *wizard.Session) error {
			sess.Restart(ctx)
			out = sessionView(input.SessionID, sess)
			return nil
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionBody{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-assessment",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}/assessment",
		Summary:     "Deterministic risk assessment of the current data",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *SessionPath) (*struct {
		Body domain.Assessment `json:"body"`
	}, error) {
		var out domain.Assessment
		err := cfg.Registry.With(ctx, input.SessionID, func(sess *wizard.Session) error {
			out = sess.Assessment()
			return nil
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Assessment `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-session",
		Method:        http.MethodPost,
		Path:          "/sessions/{session_id}/submit",
		Summary:       "Fan the screening out to every configured sink",
		DefaultStatus: http.StatusAccepted,
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		SessionPath
		UserAgent string        `header:"User-Agent"`
		Referer   string        `header:"Referer"`
		Body      *SubmitRequest `json:"body" required:"false"`
	}) (*struct {
		Body SubmitResponse `json:"body"`
	}, error) {
		client := domain.ClientContext{UserAgent: input.UserAgent, Referrer: input.Referer}
		if input.Body != nil && input.Body.UserAgent != "" {
			client.UserAgent = input.Body.UserAgent
		}
		if input.Body != nil && input.Body.Referrer != "" {
			client.Referrer = input.Body.Referrer
		}
		var out SubmitResponse
		err := cfg.Registry.With(ctx, input.SessionID, func(sess *wizard.Session) error {
			res, err := cfg.Orchestrator.Submit(ctx, sess, client)
			if err != nil {
				return err
			}
			out = SubmitResponse{Submitted: res.Submitted, SessionID: res.Payload.SessionID}
			return nil
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubmitResponse `json:"body"`
		}{Body: out}, nil
	})
}
