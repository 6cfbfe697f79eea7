// Package wizard owns the multi-step screening session: step position, the
// profile and answer aggregates, gated navigation, and draft persistence.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"screenline/internal/domain"
	"screenline/internal/scoring"
	"screenline/internal/store"
)

// DefaultQuiet is the debounce quiet period for draft writes.
const DefaultQuiet = time.Second

// ErrLocked is returned for edits after a submission has begun.
var ErrLocked = errors.New("session locked: submission already initiated")

// Session is one in-progress screening. Not an ambient singleton: callers
// construct it with an injected store and pass it explicitly.
type Session struct {
	store store.Store
	sched Scheduler
	quiet time.Duration

	profilePersist *debouncer
	answersPersist *debouncer

	// guarded by the debouncer pattern only at persist time; Session itself
	// follows the single-logical-thread model and is additionally locked by
	// its owner (see server.Registry).
	step    domain.Step
	profile domain.SubjectProfile
	answers domain.AnswerSet
	state   domain.SubmissionState
}

type Options struct {
	Store store.Store
	// Scheduler defaults to wall-clock timers.
	Scheduler Scheduler
	// Quiet defaults to DefaultQuiet.
	Quiet time.Duration
}

func New(opts Options) *Session {
	if opts.Scheduler == nil {
		opts.Scheduler = timerScheduler{}
	}
	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuiet
	}
	s := &Session{
		store:   opts.Store,
		sched:   opts.Scheduler,
		quiet:   opts.Quiet,
		step:    domain.StepProfile,
		answers: domain.AnswerSet{},
		state:   domain.SubmissionIdle,
	}
	s.profilePersist = &debouncer{sched: opts.Scheduler, quiet: opts.Quiet}
	s.answersPersist = &debouncer{sched: opts.Scheduler, quiet: opts.Quiet}
	return s
}

// Restore rehydrates aggregates and step from persisted drafts. Each value
// only overwrites in-memory state still at its empty default, and any load
// failure is treated as an absent draft.
func (s *Session) Restore(ctx context.Context) {
	if s.profile.Empty() {
		var p domain.SubjectProfile
		if found, err := s.store.Load(ctx, store.KeyProfileDraft, &p); err == nil && found {
			s.profile = p
		}
	}
	if len(s.answers) == 0 {
		var a domain.AnswerSet
		if found, err := s.store.Load(ctx, store.KeyAnswersDraft, &a); err == nil && found && a != nil {
			s.answers = a
		}
	}
	if s.step == domain.StepProfile {
		var step int
		if found, err := s.store.Load(ctx, store.KeyStepDraft, &step); err == nil && found {
			if st := domain.Step(step); st.Valid() {
				s.step = st
			}
		}
	}
}

// ProfileUpdate carries field edits; nil fields are left unchanged.
type ProfileUpdate struct {
	Name     *string
	Age      *int
	Phone    *string
	Sex      *domain.Sex
	WeightKg *float64
	HeightCm *float64
}

// ApplyProfile applies a field edit and schedules a debounced draft write of
// the whole profile aggregate. Edits are rejected once submission begins.
func (s *Session) ApplyProfile(upd ProfileUpdate) error {
	if s.state != domain.SubmissionIdle {
		return ErrLocked
	}
	if upd.Name != nil {
		s.profile.Name = *upd.Name
	}
	if upd.Age != nil {
		s.profile.Age = *upd.Age
	}
	if upd.Phone != nil {
		s.profile.Phone = *upd.Phone
	}
	if upd.Sex != nil {
		s.profile.Sex = *upd.Sex
	}
	if upd.WeightKg != nil {
		s.profile.WeightKg = *upd.WeightKg
	}
	if upd.HeightCm != nil {
		s.profile.HeightCm = *upd.HeightCm
	}
	snapshot := s.profile
	s.profilePersist.trigger(func() {
		// persistence is best-effort; a failed write means no draft
		_ = s.store.Save(context.Background(), store.KeyProfileDraft, snapshot)
	})
	return nil
}

// SetAnswer records one questionnaire answer and schedules a debounced
// draft write of the answer aggregate.
func (s *Session) SetAnswer(q domain.QuestionID, a domain.Answer) error {
	if s.state != domain.SubmissionIdle {
		return ErrLocked
	}
	if !domain.KnownQuestion(q) {
		return fmt.Errorf("unknown question %q", q)
	}
	if a != domain.AnswerYes && a != domain.AnswerNo {
		return fmt.Errorf("invalid answer %q for question %q", a, q)
	}
	s.answers[q] = a
	snapshot := s.answers.Clone()
	s.answersPersist.trigger(func() {
		_ = s.store.Save(context.Background(), store.KeyAnswersDraft, snapshot)
	})
	return nil
}

// CanProceed evaluates the current step's completeness predicate.
func (s *Session) CanProceed() bool {
	switch s.step {
	case domain.StepProfile:
		return s.profile.Name != "" && s.profile.Phone != "" &&
			(s.profile.Sex == domain.SexMale || s.profile.Sex == domain.SexFemale) &&
			s.profile.Age >= 1 && s.profile.Age <= 120
	case domain.StepMetrics:
		return s.profile.WeightKg >= 1 && s.profile.WeightKg <= 500 &&
			s.profile.HeightCm >= 50 && s.profile.HeightCm <= 250
	case domain.StepQuestionnaire:
		return s.answers.Complete()
	default:
		return true
	}
}

// Next advances one step when the current step's predicate holds. A failed
// predicate rejects the transition silently: advisory gating, not an error.
func (s *Session) Next(ctx context.Context) bool {
	if s.step >= domain.StepResults || !s.CanProceed() {
		return false
	}
	s.step++
	s.persistStep(ctx)
	return true
}

// Prev moves back one step; it never clears data of the step left.
func (s *Session) Prev(ctx context.Context) bool {
	if s.step <= domain.StepProfile {
		return false
	}
	s.step--
	s.persistStep(ctx)
	return true
}

func (s *Session) persistStep(ctx context.Context) {
	_ = s.store.Save(ctx, store.KeyStepDraft, int(s.step))
}

// Restart resets the session to its empty default and clears every draft
// key, discarding pending debounced writes.
func (s *Session) Restart(ctx context.Context) {
	s.profilePersist.stop()
	s.answersPersist.stop()
	s.step = domain.StepProfile
	s.profile = domain.SubjectProfile{}
	s.answers = domain.AnswerSet{}
	s.state = domain.SubmissionIdle
	s.ClearDrafts(ctx)
}

// ClearDrafts removes the three session-draft keys and cancels pending
// debounced writes so a stale draft cannot reappear after the clear.
func (s *Session) ClearDrafts(ctx context.Context) {
	s.profilePersist.stop()
	s.answersPersist.stop()
	_ = s.store.Clear(ctx, store.KeyProfileDraft)
	_ = s.store.Clear(ctx, store.KeyAnswersDraft)
	_ = s.store.Clear(ctx, store.KeyStepDraft)
}

// Assessment computes the scoring result lazily; entering the results step
// stores nothing.
func (s *Session) Assessment() domain.Assessment {
	return scoring.Evaluate(s.profile, s.answers)
}

// SubmitEligible reports whether a submission may begin: idle state and a
// complete answer set.
func (s *Session) SubmitEligible() bool {
	return s.state == domain.SubmissionIdle && s.answers.Complete()
}

// BeginSubmission transitions idle -> submitting. Calling it without
// SubmitEligible holding is a caller error.
func (s *Session) BeginSubmission() error {
	if s.state != domain.SubmissionIdle {
		return fmt.Errorf("submission already %s", s.state)
	}
	if !s.answers.Complete() {
		return errors.New("questionnaire incomplete")
	}
	s.state = domain.SubmissionSubmitting
	return nil
}

// FinishSubmission records the aggregate outcome of a submission attempt.
func (s *Session) FinishSubmission(submitted bool) {
	if submitted {
		s.state = domain.SubmissionSubmitted
		return
	}
	s.state = domain.SubmissionFailed
}

func (s *Session) Step() domain.Step                       { return s.step }
func (s *Session) Profile() domain.SubjectProfile          { return s.profile }
func (s *Session) Answers() domain.AnswerSet               { return s.answers.Clone() }
func (s *Session) SubmissionState() domain.SubmissionState { return s.state }

// Store exposes the session-scoped draft store, used by the submission
// orchestrator for the failed-submission archive.
func (s *Session) Store() store.Store { return s.store }
