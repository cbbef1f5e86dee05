package auth

import (
	api2captcha "github.com/2captcha/2captcha-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// TwoCaptchaSolver delegates challenges to the 2captcha solving service.
// Polling for the asynchronous result is handled inside the client.
type TwoCaptchaSolver struct {
	client *api2captcha.Client
}

func NewTwoCaptchaSolver(apiKey string) *TwoCaptchaSolver {
	return &TwoCaptchaSolver{client: api2captcha.NewClient(apiKey)}
}

func (s *TwoCaptchaSolver) SolveRecaptchaV2(siteKey, pageURL string) (string, error) {
	captcha := api2captcha.ReCaptcha{
		SiteKey:   siteKey,
		Url:       pageURL,
		Invisible: false,
	}

	token, err := s.client.Solve(captcha.ToRequest())
	if err != nil {
		return "", errors.Wrap(err, "could not solve recaptcha")
	}

	log.Debugf("received solution token (%d bytes)", len(token))
	return token, nil
}
