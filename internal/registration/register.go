package registration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/trace"
)

// Form element IDs on the signup page.
const (
	selCTA             = "#unknown-player-1_cta"
	selEmail           = "#email-regform"
	selName            = "#name-regform"
	selPassword        = "#password-regform"
	selPasswordConfirm = "#password-confirm-regform"
	selBirthDay        = "#birthdate-day-regform"
	selBirthMonth      = "#birthdate-month-regform"
	selBirthYear       = "#birthdate-year-regform"
	selBonus           = "#bonus-regform"
	selBonusLabel      = `label[for="bonus-regform"]`
	selPolicy          = "#policy-regform"
	selPolicyLabel     = `label[for="policy-regform"]`
	selSubmit          = "#regform_submit"
)

// acceptCookiesJS clicks the OneTrust banner and keeps re-clicking it
// in case it reappears after navigation.
const acceptCookiesJS = `(() => {
  const click = () => {
    const b = document.querySelector('#onetrust-accept-btn-handler');
    if (b) { b.click(); return true; }
    return false;
  };
  click();
  if (!window.__cookieWatcher) {
    window.__cookieWatcher = setInterval(click, 5000);
  }
  return true;
})()`

// Config for the signup browser session.
type Config struct {
	SignupURL    string
	ReferralCode string
	BirthDay     string
	BirthMonth   string
	BirthYear    string
	Headless     bool
	NavTimeout   time.Duration
	// SubmitSettle is how long to wait after submit before reading
	// the confirmation mailbox.
	SubmitSettle time.Duration
}

func (c Config) withDefaults() Config {
	if c.SignupURL == "" {
		c.SignupURL = "https://join.worldoftanks.eu/1613051096/"
	}
	if c.ReferralCode == "" {
		c.ReferralCode = "EPICWIN"
	}
	if c.BirthDay == "" {
		c.BirthDay = "01"
	}
	if c.BirthMonth == "" {
		c.BirthMonth = "01"
	}
	if c.BirthYear == "" {
		c.BirthYear = "1998"
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.SubmitSettle <= 0 {
		c.SubmitSettle = 10 * time.Second
	}
	return c
}

// Browser owns one chromedp session. Register and the confirmation
// navigation share it so both run in the same cookie context.
type Browser struct {
	cfg         Config
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func NewBrowser(cfg Config) *Browser {
	return &Browser{cfg: cfg.withDefaults()}
}

// Start launches the browser process.
func (b *Browser) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	b.allocCancel = allocCancel
	b.ctx, b.cancel = chromedp.NewContext(allocCtx)
	return nil
}

// Close tears the browser down.
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}

// setValueJS assigns a field through the DOM and fires the framework
// events, for inputs that reject synthetic keystrokes.
func setValueJS(sel, value string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  el.focus();
  el.value = %q;
  el.dispatchEvent(new Event('input', {bubbles: true}));
  el.dispatchEvent(new Event('change', {bubbles: true}));
  return true;
})()`, sel, value)
}

func fillField(sel, value string) chromedp.Tasks {
	var ok bool
	return chromedp.Tasks{
		chromedp.Evaluate(setValueJS(sel, value), &ok),
	}
}

// Register walks the signup form and submits it. The confirmation
// email is handled separately by Confirm.
func (b *Browser) Register(ctx context.Context, email, password, username string) error {
	if b.ctx == nil {
		return errors.New(errors.Config, "browser not started")
	}
	log := trace.Logger(ctx)
	cfg := b.cfg

	runCtx, cancel := context.WithTimeout(b.ctx, cfg.NavTimeout+cfg.SubmitSettle+60*time.Second)
	defer cancel()

	var cookiesOK, bonusOK, policyChecked bool
	err := chromedp.Run(runCtx,
		chromedp.Navigate(cfg.SignupURL),
		chromedp.Evaluate(acceptCookiesJS, &cookiesOK),
		chromedp.Click(selCTA, chromedp.NodeVisible),
		chromedp.WaitVisible(selEmail),
		chromedp.Sleep(2*time.Second),

		fillField(selEmail, email),
		fillField(selName, username),
		fillField(selPassword, password),
		fillField(selPasswordConfirm, password),
		fillField(selBirthDay, cfg.BirthDay),
		fillField(selBirthMonth, cfg.BirthMonth),
		fillField(selBirthYear, cfg.BirthYear),

		// the referral field hides behind its label
		chromedp.Click(selBonusLabel, chromedp.NodeVisible),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Evaluate(setValueJS(selBonus, cfg.ReferralCode), &bonusOK),

		chromedp.Click(selPolicyLabel, chromedp.NodeVisible),
		chromedp.Sleep(100*time.Millisecond),
		chromedp.Evaluate(fmt.Sprintf(`document.querySelector(%q) !== null && document.querySelector(%q).checked`, selPolicy, selPolicy), &policyChecked),
	)
	if err != nil {
		return errors.Wrap(err, errors.Transient, "fill signup form")
	}
	if !bonusOK {
		log.Warn("referral code field could not be filled", "code", cfg.ReferralCode)
	}
	if !policyChecked {
		// label click missed, force the checkbox itself
		if err := chromedp.Run(runCtx, chromedp.Click(selPolicy)); err != nil {
			return errors.Wrap(err, errors.Transient, "accept policy checkbox")
		}
	}

	log.Info("submitting signup form", "email", email, "username", username)
	err = chromedp.Run(runCtx,
		chromedp.Click(selSubmit, chromedp.NodeVisible),
		chromedp.Sleep(cfg.SubmitSettle),
	)
	if err != nil {
		return errors.Wrap(err, errors.Transient, "submit signup form")
	}
	return nil
}

// OpenLink navigates the session to the confirmation URL and lets the
// page settle.
func (b *Browser) OpenLink(ctx context.Context, link string) error {
	if b.ctx == nil {
		return errors.New(errors.Config, "browser not started")
	}
	if !strings.HasPrefix(link, "http") {
		return errors.Newf(errors.Transient, "refusing non-http link %q", link)
	}
	runCtx, cancel := context.WithTimeout(b.ctx, b.cfg.NavTimeout)
	defer cancel()
	err := chromedp.Run(runCtx,
		chromedp.Navigate(link),
		chromedp.Sleep(5*time.Second),
	)
	if err != nil {
		return errors.Wrap(err, errors.Transient, "open confirmation link")
	}
	return nil
}
