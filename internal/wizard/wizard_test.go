package wizard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"screenline/internal/domain"
	"screenline/internal/store"
	"screenline/internal/wizard"
)

// manualScheduler queues scheduled funcs until the test fires them, so
// debounce behavior is exercised without real timers.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	fn       func()
	canceled bool
}

func (m *manualScheduler) AfterFunc(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	task := &manualTask{fn: fn}
	m.tasks = append(m.tasks, task)
	return func() {
		m.mu.Lock()
		task.canceled = true
		m.mu.Unlock()
	}
}

// Fire runs every pending, non-canceled task and empties the queue.
func (m *manualScheduler) Fire() {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()
	for _, task := range tasks {
		if !task.canceled {
			task.fn()
		}
	}
}

func strPtr(s string) *string         { return &s }
func intPtr(i int) *int               { return &i }
func sexPtr(s domain.Sex) *domain.Sex { return &s }
func floatPtr(f float64) *float64     { return &f }

type testEnv struct {
	Session *wizard.Session
	Store   *store.Memory
	Sched   *manualScheduler
	Ctx     context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	mem := store.NewMemory()
	sched := &manualScheduler{}
	sess := wizard.New(wizard.Options{Store: mem, Scheduler: sched})
	return testEnv{Session: sess, Store: mem, Sched: sched, Ctx: context.Background()}
}

func fillStep1(t *testing.T, env testEnv) {
	t.Helper()
	err := env.Session.ApplyProfile(wizard.ProfileUpdate{
		Name:  strPtr("Ahmed"),
		Age:   intPtr(44),
		Phone: strPtr("0501234567"),
		Sex:   sexPtr(domain.SexMale),
	})
	if err != nil {
		t.Fatalf("apply profile: %v", err)
	}
}

func fillStep2(t *testing.T, env testEnv) {
	t.Helper()
	err := env.Session.ApplyProfile(wizard.ProfileUpdate{
		WeightKg: floatPtr(90),
		HeightCm: floatPtr(180),
	})
	if err != nil {
		t.Fatalf("apply metrics: %v", err)
	}
}

func answerAll(t *testing.T, env testEnv) {
	t.Helper()
	for _, q := range domain.Questions {
		if err := env.Session.SetAnswer(q, domain.AnswerNo); err != nil {
			t.Fatalf("answer %s: %v", q, err)
		}
	}
}

func TestNextGatingStep1(t *testing.T) {
	env := newTestEnv(t)

	// each missing field keeps the step unchanged
	partials := []wizard.ProfileUpdate{
		{Age: intPtr(40), Phone: strPtr("1"), Sex: sexPtr(domain.SexMale)},                      // no name
		{Name: strPtr("x"), Phone: strPtr("1"), Sex: sexPtr(domain.SexMale)},                   // no age
		{Name: strPtr("x"), Age: intPtr(40), Sex: sexPtr(domain.SexMale)},                      // no phone
		{Name: strPtr("x"), Age: intPtr(40), Phone: strPtr("1")},                               // no sex
		{Name: strPtr("x"), Age: intPtr(130), Phone: strPtr("1"), Sex: sexPtr(domain.SexMale)}, // age out of range
	}
	for i, upd := range partials {
		env := newTestEnv(t)
		if err := env.Session.ApplyProfile(upd); err != nil {
			t.Fatalf("case %d apply: %v", i, err)
		}
		if env.Session.Next(env.Ctx) {
			t.Fatalf("case %d: next() should be rejected", i)
		}
		if env.Session.Step() != domain.StepProfile {
			t.Fatalf("case %d: step moved to %d", i, env.Session.Step())
		}
	}

	fillStep1(t, env)
	if !env.Session.Next(env.Ctx) {
		t.Fatalf("next() should pass with a complete profile")
	}
	if env.Session.Step() != domain.StepMetrics {
		t.Fatalf("step = %d, want 2", env.Session.Step())
	}
}

func TestNextGatingStep2And3(t *testing.T) {
	env := newTestEnv(t)
	fillStep1(t, env)
	env.Session.Next(env.Ctx)

	if env.Session.Next(env.Ctx) {
		t.Fatalf("metrics missing; next() must be rejected")
	}
	if err := env.Session.ApplyProfile(wizard.ProfileUpdate{WeightKg: floatPtr(600), HeightCm: floatPtr(180)}); err != nil {
		t.Fatal(err)
	}
	if env.Session.Next(env.Ctx) {
		t.Fatalf("out-of-range weight must not pass")
	}
	fillStep2(t, env)
	if !env.Session.Next(env.Ctx) {
		t.Fatalf("valid metrics should pass")
	}

	// questionnaire requires all five answers
	for i, q := range domain.Questions {
		if env.Session.Next(env.Ctx) {
			t.Fatalf("next() passed with %d answers", i)
		}
		if err := env.Session.SetAnswer(q, domain.AnswerYes); err != nil {
			t.Fatal(err)
		}
	}
	if !env.Session.Next(env.Ctx) {
		t.Fatalf("next() should pass with all answers")
	}
	if env.Session.Step() != domain.StepResults {
		t.Fatalf("step = %d, want 4", env.Session.Step())
	}
	// results step is terminal
	if env.Session.Next(env.Ctx) {
		t.Fatalf("next() from step 4 must be rejected")
	}
}

func TestPrevKeepsData(t *testing.T) {
	env := newTestEnv(t)
	if env.Session.Prev(env.Ctx) {
		t.Fatalf("prev() from step 1 must be rejected")
	}
	fillStep1(t, env)
	env.Session.Next(env.Ctx)
	fillStep2(t, env)

	if !env.Session.Prev(env.Ctx) {
		t.Fatalf("prev() from step 2 should succeed")
	}
	if env.Session.Step() != domain.StepProfile {
		t.Fatalf("step = %d, want 1", env.Session.Step())
	}
	p := env.Session.Profile()
	if p.WeightKg != 90 || p.Name != "Ahmed" {
		t.Fatalf("prev() cleared data: %+v", p)
	}
}

func TestDebounceSupersede(t *testing.T) {
	env := newTestEnv(t)

	if err := env.Session.ApplyProfile(wizard.ProfileUpdate{Name: strPtr("first")}); err != nil {
		t.Fatal(err)
	}
	if err := env.Session.ApplyProfile(wizard.ProfileUpdate{Name: strPtr("second")}); err != nil {
		t.Fatal(err)
	}
	env.Sched.Fire()

	if got := env.Store.SaveCount[store.KeyProfileDraft]; got != 1 {
		t.Fatalf("persisted %d times, want exactly 1", got)
	}
	var p domain.SubjectProfile
	found, err := env.Store.Load(env.Ctx, store.KeyProfileDraft, &p)
	if err != nil || !found {
		t.Fatalf("load draft: found=%v err=%v", found, err)
	}
	if p.Name != "second" {
		t.Fatalf("persisted %q, want the superseding edit", p.Name)
	}
}

func TestAnswerDebounce(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Session.SetAnswer(domain.QuestionSnoring, domain.AnswerYes); err != nil {
		t.Fatal(err)
	}
	if err := env.Session.SetAnswer(domain.QuestionSnoring, domain.AnswerNo); err != nil {
		t.Fatal(err)
	}
	env.Sched.Fire()
	if got := env.Store.SaveCount[store.KeyAnswersDraft]; got != 1 {
		t.Fatalf("persisted %d times, want 1", got)
	}
	var a domain.AnswerSet
	if found, _ := env.Store.Load(env.Ctx, store.KeyAnswersDraft, &a); !found {
		t.Fatalf("answers draft missing")
	}
	if a[domain.QuestionSnoring] != domain.AnswerNo {
		t.Fatalf("persisted %q, want the superseding answer", a[domain.QuestionSnoring])
	}
}

func TestSetAnswerValidation(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Session.SetAnswer("favoriteColor", domain.AnswerYes); err == nil {
		t.Fatalf("unknown question accepted")
	}
	if err := env.Session.SetAnswer(domain.QuestionSnoring, "maybe"); err == nil {
		t.Fatalf("invalid answer accepted")
	}
}

func TestRestoreOnlyOverwritesDefaults(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	saved := domain.SubjectProfile{Name: "saved", Age: 60, Phone: "2", Sex: domain.SexFemale}
	if err := mem.Save(ctx, store.KeyProfileDraft, saved); err != nil {
		t.Fatal(err)
	}
	if err := mem.Save(ctx, store.KeyStepDraft, 3); err != nil {
		t.Fatal(err)
	}

	sched := &manualScheduler{}
	sess := wizard.New(wizard.Options{Store: mem, Scheduler: sched})
	sess.Restore(ctx)
	if sess.Profile().Name != "saved" || sess.Step() != domain.StepQuestionnaire {
		t.Fatalf("restore failed: %+v step=%d", sess.Profile(), sess.Step())
	}

	// a session already holding edits must not be overwritten
	sess2 := wizard.New(wizard.Options{Store: mem, Scheduler: sched})
	if err := sess2.ApplyProfile(wizard.ProfileUpdate{Name: strPtr("live")}); err != nil {
		t.Fatal(err)
	}
	sess2.Restore(ctx)
	if sess2.Profile().Name != "live" {
		t.Fatalf("restore overwrote live edits with %q", sess2.Profile().Name)
	}
}

func TestRestoreSwallowsFailures(t *testing.T) {
	mem := store.NewMemory()
	// step draft holding garbage must be ignored, not fatal
	if err := mem.Save(context.Background(), store.KeyStepDraft, 99); err != nil {
		t.Fatal(err)
	}
	sess := wizard.New(wizard.Options{Store: mem, Scheduler: &manualScheduler{}})
	sess.Restore(context.Background())
	if sess.Step() != domain.StepProfile {
		t.Fatalf("invalid persisted step restored: %d", sess.Step())
	}
}

func TestPersistFailureSwallowed(t *testing.T) {
	env := newTestEnv(t)
	env.Store.FailSaves = true
	if err := env.Session.ApplyProfile(wizard.ProfileUpdate{Name: strPtr("x")}); err != nil {
		t.Fatalf("edit should not surface persistence failures: %v", err)
	}
	env.Sched.Fire()
	if env.Session.Profile().Name != "x" {
		t.Fatalf("in-memory state lost")
	}
}

func TestRestartClearsEverything(t *testing.T) {
	env := newTestEnv(t)
	fillStep1(t, env)
	env.Session.Next(env.Ctx)
	fillStep2(t, env)
	env.Session.Next(env.Ctx)
	answerAll(t, env)
	env.Sched.Fire()

	// simulate a prior failed submission
	if err := env.Session.BeginSubmission(); err != nil {
		t.Fatal(err)
	}
	env.Session.FinishSubmission(false)

	env.Session.Restart(env.Ctx)
	if env.Session.Step() != domain.StepProfile {
		t.Fatalf("step = %d after restart", env.Session.Step())
	}
	if !env.Session.Profile().Empty() || len(env.Session.Answers()) != 0 {
		t.Fatalf("restart left data behind")
	}
	if env.Session.SubmissionState() != domain.SubmissionIdle {
		t.Fatalf("submission state = %s", env.Session.SubmissionState())
	}
	for _, key := range []string{store.KeyProfileDraft, store.KeyAnswersDraft, store.KeyStepDraft} {
		if env.Store.Has(key) {
			t.Fatalf("draft key %s survived restart", key)
		}
	}
}

func TestClearDraftsCancelsPendingPersist(t *testing.T) {
	env := newTestEnv(t)
	fillStep1(t, env)
	env.Session.ClearDrafts(env.Ctx)
	env.Sched.Fire()
	if env.Store.Has(store.KeyProfileDraft) {
		t.Fatalf("pending debounced write resurrected a cleared draft")
	}
}

func TestSubmissionStateMachine(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Session.BeginSubmission(); err == nil {
		t.Fatalf("incomplete questionnaire must be a caller error")
	}
	answerAll(t, env)
	if !env.Session.SubmitEligible() {
		t.Fatalf("expected eligible")
	}
	if err := env.Session.BeginSubmission(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if env.Session.SubmissionState() != domain.SubmissionSubmitting {
		t.Fatalf("state = %s", env.Session.SubmissionState())
	}
	// edits are locked once submission begins
	if err := env.Session.ApplyProfile(wizard.ProfileUpdate{Name: strPtr("late")}); err == nil {
		t.Fatalf("profile mutable after submission began")
	}
	if err := env.Session.SetAnswer(domain.QuestionSnoring, domain.AnswerYes); err == nil {
		t.Fatalf("answers mutable after submission began")
	}
	if err := env.Session.BeginSubmission(); err == nil {
		t.Fatalf("double begin accepted")
	}
	env.Session.FinishSubmission(true)
	if env.Session.SubmissionState() != domain.SubmissionSubmitted {
		t.Fatalf("state = %s", env.Session.SubmissionState())
	}
}

func TestStepPersistedImmediately(t *testing.T) {
	env := newTestEnv(t)
	fillStep1(t, env)
	env.Session.Next(env.Ctx)
	// no Fire(): step writes are not debounced
	var step int
	if found, _ := env.Store.Load(env.Ctx, store.KeyStepDraft, &step); !found || step != 2 {
		t.Fatalf("step draft = %d (found=%v), want 2", step, found)
	}
}
