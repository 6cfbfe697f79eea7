// Package submit fans a finished screening out to every configured sink and
// decides the aggregate outcome.
package submit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"screenline/internal/domain"
	"screenline/internal/sinks"
	"screenline/internal/store"
	"screenline/internal/wizard"
)

// Orchestrator delivers one SubmissionPayload to N sinks concurrently,
// waits for all of them to settle, and tolerates partial failure: one
// success makes the submission a success. On total failure it archives the
// payload locally for manual recovery.
type Orchestrator struct {
	Sinks     []sinks.Sink
	Logger    *zap.Logger
	Now       func() time.Time
	SourceTag string
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// Outcome is all a caller learns: the aggregate result and the payload that
// was dispatched. Individual sink errors stay in the operator log and, on
// total failure, in the archive.
type Outcome struct {
	Submitted bool
	Payload   domain.SubmissionPayload
}

// Submit requires an idle session with a complete questionnaire; anything
// else is a caller error. It transitions the session to submitting, fires
// every sink in parallel, discards the local draft the moment dispatch is
// initiated, then joins on all sinks before deciding.
func (o *Orchestrator) Submit(ctx context.Context, sess *wizard.Session, client domain.ClientContext) (Outcome, error) {
	if err := sess.BeginSubmission(); err != nil {
		return Outcome{}, err
	}
	// once initiated, delivery and the draft clear must not be aborted by
	// the caller going away
	ctx = context.WithoutCancel(ctx)
	payload := BuildPayload(sess.Profile(), sess.Answers(), o.now(), o.SourceTag, client)
	log := o.logger().With(zap.String("session_id", payload.SessionID))

	type settled struct {
		name string
		resp sinks.Response
		err  error
	}
	results := make([]settled, len(o.Sinks))
	var wg sync.WaitGroup
	for i, snk := range o.Sinks {
		wg.Add(1)
		go func(i int, snk sinks.Sink) {
			defer wg.Done()
			resp, err := snk.Send(ctx, payload)
			results[i] = settled{name: snk.Name(), resp: resp, err: err}
		}(i, snk)
	}

	// the draft is discarded when the user commits to submit, independent
	// of delivery outcome
	sess.ClearDrafts(ctx)

	wg.Wait()

	succeeded := 0
	var failures []string
	for _, r := range results {
		if r.err != nil {
			failures = append(failures, r.name+": "+r.err.Error())
			log.Warn("sink delivery failed", zap.String("sink", r.name), zap.Error(r.err))
			continue
		}
		succeeded++
		log.Info("sink delivery succeeded", zap.String("sink", r.name), zap.String("remote_id", r.resp.ID))
	}
	if len(o.Sinks) == 0 {
		failures = append(failures, errNoSinks.Error())
		log.Warn("no sinks configured")
	}

	if succeeded == 0 {
		o.archive(ctx, sess.Store(), payload, failures, log)
		sess.FinishSubmission(false)
		return Outcome{Submitted: false, Payload: payload}, nil
	}
	sess.FinishSubmission(true)
	log.Info("submission accepted",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(failures)))
	return Outcome{Submitted: true, Payload: payload}, nil
}

var errNoSinks = errors.New("no sinks configured")

func (o *Orchestrator) archive(ctx context.Context, s store.Store, payload domain.SubmissionPayload, failures []string, log *zap.Logger) {
	record := domain.FailedSubmission{
		Payload:    payload,
		Errors:     failures,
		ArchivedAt: o.now().UTC().Format(time.RFC3339),
	}
	if err := s.Save(ctx, store.KeyFailedArchive, record); err != nil {
		// archive is itself best-effort; nothing above the log can help
		log.Error("archiving failed submission failed", zap.Error(err))
		return
	}
	log.Warn("all sinks failed; payload archived locally", zap.Strings("errors", failures))
}
