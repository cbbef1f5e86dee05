package auth

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// State is the authentication session lifecycle.
type State int32

const (
	StateUnauthenticated State = iota
	StateProbing
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// ErrAttemptInProgress is returned when another authentication attempt holds
// the browser identity. Callers treat it as "already being handled".
var ErrAttemptInProgress = errors.New("authentication attempt already in progress")

var (
	authAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "encar",
		Subsystem: "auth",
		Name:      "attempts_total",
		Help:      "The total number of authentication attempts",
	})
	captchaSolved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "encar",
		Subsystem: "auth",
		Name:      "captcha_solved_total",
		Help:      "The total number of successfully solved challenges",
	})
)

// Prober is the lightweight API check deciding whether the scraper's IP is
// still authorized. Satisfied by the catalog client.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Solver exchanges a challenge site-key for a solution token via the
// third-party solving service.
type Solver interface {
	SolveRecaptchaV2(siteKey, pageURL string) (string, error)
}

// ChallengeSession abstracts the browser-driven challenge workflow so tests
// run without a real browser.
type ChallengeSession interface {
	WarmUp(ctx context.Context) error
	DetectChallenge(ctx context.Context) (bool, error)
	ExtractSiteKey(ctx context.Context) (string, error)
	SubmitSolution(ctx context.Context, token string) error
	AwaitConfirmation(ctx context.Context) error
	URL(ctx context.Context) (string, error)
	Close()
}

// SessionOpener launches one browser session. There is a single browser
// identity (one cookie jar), so sessions must never overlap.
type SessionOpener interface {
	Open(ctx context.Context) (ChallengeSession, error)
}

// Authenticator owns the scraper's session state. EnsureAuthenticated is
// idempotent across concurrent callers: the browser path is an exclusive
// critical section guarded by a try-lock, and contending callers skip.
type Authenticator struct {
	mu     sync.Mutex
	prober Prober
	opener SessionOpener
	solver Solver
	state  atomic.Int32
}

func New(prober Prober, opener SessionOpener, solver Solver) *Authenticator {
	return &Authenticator{
		prober: prober,
		opener: opener,
		solver: solver,
	}
}

// State reports the current lifecycle state.
func (a *Authenticator) State() State {
	return State(a.state.Load())
}

func (a *Authenticator) setState(s State) {
	a.state.Store(int32(s))
}

// EnsureAuthenticated probes the API and, when the probe fails, runs the
// browser warm-up and challenge workflow. Failure is non-fatal: the state
// stays unauthenticated and the next scheduled invocation retries, without
// an immediate retry loop that would hammer a service already flagging the
// IP as suspicious.
func (a *Authenticator) EnsureAuthenticated(ctx context.Context) error {
	if !a.mu.TryLock() {
		log.Info("⏭ Authentication attempt already running, skipping")
		return ErrAttemptInProgress
	}
	defer a.mu.Unlock()

	authAttempts.Inc()
	a.setState(StateProbing)

	if a.prober.Probe(ctx) {
		a.setState(StateAuthenticated)
		log.Info("✅ API probe succeeded, no authentication needed")
		return nil
	}

	a.setState(StateAuthenticating)
	if err := a.authenticate(ctx); err != nil {
		log.Errorf("❌ Browser authentication attempt failed: %v", err)
	}

	if a.prober.Probe(ctx) {
		a.setState(StateAuthenticated)
		log.Info("✅ API probe succeeded after authentication")
		return nil
	}

	a.setState(StateUnauthenticated)
	log.Error("❌ API probe still failing after authentication attempt")
	return errors.New("probe failed after authentication attempt")
}

func (a *Authenticator) authenticate(ctx context.Context) error {
	log.Info("🌐 Launching browser session...")
	session, err := a.opener.Open(ctx)
	if err != nil {
		return errors.Wrap(err, "could not open browser session")
	}
	defer session.Close()

	if err := session.WarmUp(ctx); err != nil {
		return errors.Wrap(err, "warm-up navigation failed")
	}

	challenged, err := session.DetectChallenge(ctx)
	if err != nil {
		return errors.Wrap(err, "challenge detection failed")
	}
	if !challenged {
		log.Info("No challenge detected")
		return nil
	}

	log.Info("🧩 Challenge detected, starting solve process")

	siteKey, err := session.ExtractSiteKey(ctx)
	if err != nil {
		return errors.Wrap(err, "could not extract site key")
	}
	log.Debugf("challenge site key: %s", siteKey)

	pageURL, err := session.URL(ctx)
	if err != nil {
		return errors.Wrap(err, "could not read page url")
	}

	token, err := a.solver.SolveRecaptchaV2(siteKey, pageURL)
	if err != nil {
		return errors.Wrap(err, "solving service failed")
	}

	if err := session.SubmitSolution(ctx, token); err != nil {
		return errors.Wrap(err, "could not submit solution token")
	}
	if err := session.AwaitConfirmation(ctx); err != nil {
		return errors.Wrap(err, "challenge confirmation failed")
	}

	captchaSolved.Inc()
	log.Info("✅ Challenge solved")
	return nil
}
