package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DOM markers of the marketplace's verification page.
const (
	challengeFrameQuery = `iframe[src*="recaptcha"], .g-recaptcha`
	siteKeyQuery        = `[data-sitekey]`
	responseFieldQuery  = `textarea[name="g-recaptcha-response"]`
	verifyButtonQuery   = `#verify-human-btn`
)

// BrowserOptions configures the warm-up navigation. The settle windows model
// human-like timing: anti-bot heuristics key on navigation pauses.
type BrowserOptions struct {
	SiteURL     string
	UserAgent   string
	Headless    bool
	NavTimeout  time.Duration
	SettleShort time.Duration
	SettleLong  time.Duration
	WaitTimeout time.Duration
}

func (o *BrowserOptions) withDefaults() BrowserOptions {
	opts := *o
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 YaBrowser/25.2.0.0 Safari/537.36"
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 50 * time.Second
	}
	if opts.SettleShort <= 0 {
		opts.SettleShort = 10 * time.Second
	}
	if opts.SettleLong <= 0 {
		opts.SettleLong = 60 * time.Second
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 15 * time.Second
	}
	return opts
}

// ChromeOpener launches headless Chrome sessions via chromedp.
type ChromeOpener struct {
	opts BrowserOptions
}

func NewChromeOpener(opts BrowserOptions) *ChromeOpener {
	return &ChromeOpener{opts: opts.withDefaults()}
}

func (o *ChromeOpener) Open(ctx context.Context) (ChallengeSession, error) {
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", o.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("lang", "ru-RU"),
		chromedp.Flag("start-maximized", true),
		chromedp.UserAgent(o.opts.UserAgent),
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)

	return &chromeSession{
		ctx:  chromeCtx,
		opts: o.opts,
		cancel: func() {
			chromeCancel()
			allocCancel()
		},
	}, nil
}

type chromeSession struct {
	ctx    context.Context
	opts   BrowserOptions
	cancel func()
}

// WarmUp navigates to the site, pauses, reloads and pauses again before any
// challenge handling, mimicking a human first visit.
func (s *chromeSession) WarmUp(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(s.ctx, s.opts.NavTimeout+s.opts.SettleShort+s.opts.SettleLong+s.opts.NavTimeout)
	defer cancel()

	log.Info("Opening site...")
	return chromedp.Run(navCtx,
		chromedp.Navigate(s.opts.SiteURL),
		waitForDocumentReady(),
		chromedp.Sleep(s.opts.SettleShort),
		chromedp.Reload(),
		chromedp.Sleep(s.opts.SettleLong),
	)
}

// DetectChallenge checks for the challenge widget or its script-injected
// configuration flag.
func (s *chromeSession) DetectChallenge(ctx context.Context) (bool, error) {
	evalCtx, cancel := context.WithTimeout(s.ctx, s.opts.WaitTimeout)
	defer cancel()

	var widgetCount int
	var scriptFlag bool
	err := chromedp.Run(evalCtx,
		chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll('%s').length`, challengeFrameQuery), &widgetCount),
		chromedp.Evaluate(`typeof window.___grecaptcha_cfg !== 'undefined'`, &scriptFlag),
	)
	if err != nil {
		return false, err
	}
	return widgetCount > 0 || scriptFlag, nil
}

func (s *chromeSession) ExtractSiteKey(ctx context.Context) (string, error) {
	evalCtx, cancel := context.WithTimeout(s.ctx, s.opts.WaitTimeout)
	defer cancel()

	var siteKey string
	err := chromedp.Run(evalCtx, chromedp.Evaluate(fmt.Sprintf(`(() => {
		const el = document.querySelector('%s');
		return el ? el.getAttribute('data-sitekey') : '';
	})()`, siteKeyQuery), &siteKey))
	if err != nil {
		return "", err
	}
	if siteKey == "" {
		return "", errors.New("no site key found on page")
	}
	return siteKey, nil
}

// SubmitSolution injects the solution token into the response field and
// triggers the page's verification flow.
func (s *chromeSession) SubmitSolution(ctx context.Context, token string) error {
	evalCtx, cancel := context.WithTimeout(s.ctx, s.opts.WaitTimeout)
	defer cancel()

	return chromedp.Run(evalCtx,
		chromedp.Evaluate(fmt.Sprintf(`(() => {
			const field = document.querySelector('%s');
			if (field) {
				field.style.display = 'block';
				field.value = %q;
			}
			if (typeof window.onCaptchaSuccess === 'function') {
				window.onCaptchaSuccess(%q);
			}
		})()`, responseFieldQuery, token, token), nil),
		chromedp.Click(verifyButtonQuery, chromedp.ByQuery),
	)
}

// AwaitConfirmation waits for the verify button to disappear. A button that
// is still present after the wait means the challenge did not pass.
func (s *chromeSession) AwaitConfirmation(ctx context.Context) error {
	deadline := time.Now().Add(s.opts.WaitTimeout)
	for {
		evalCtx, cancel := context.WithTimeout(s.ctx, s.opts.WaitTimeout)
		var present bool
		err := chromedp.Run(evalCtx, chromedp.Evaluate(
			fmt.Sprintf(`document.querySelector('%s') !== null`, verifyButtonQuery), &present))
		cancel()

		if err != nil {
			return err
		}
		if !present {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("verify button still visible, challenge not passed")
		}

		select {
		case <-time.After(time.Second):
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
}

func (s *chromeSession) URL(ctx context.Context) (string, error) {
	evalCtx, cancel := context.WithTimeout(s.ctx, s.opts.WaitTimeout)
	defer cancel()

	var location string
	err := chromedp.Run(evalCtx, chromedp.Location(&location))
	return location, err
}

func (s *chromeSession) Close() {
	s.cancel()
	log.Info("Browser session closed")
}

func waitForDocumentReady() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var readyState string
			if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
				return err
			}
			if readyState == "complete" {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}
