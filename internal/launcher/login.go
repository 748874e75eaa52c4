package launcher

import (
	"context"
	"image"
	"time"

	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/trace"
	"github.com/VaynZXC/tanki/internal/vision"
)

// Launcher scene labels produced by the classifier.
const (
	SceneMainMenu      = "main_menu"
	SceneLoginMenu     = "login_menu"
	SceneAccountActive = "account_is_login"
	SceneAccountCard   = "account_logout"
	SceneLogoutConfirm = "account_logout_conf"
)

// Button-crop template names.
const (
	tmplLogout     = "logout.png"
	tmplCross      = "krestik.png"
	tmplCrossAlt   = "krestik2.png"
	tmplContinue   = "continue.png"
	tmplEmailField = "email.png"
	tmplPassword   = "password.png"
	tmplLoginBtn   = "login_btn.png"
	tmplLoginError = "login_error.png"
	tmplPlayBtn    = "play_btn.png"
)

// Relative anchors inside the launcher window, used when a template
// is missing or does not match.
var (
	avatarAnchor     = relPoint{0.04, 0.12}
	playAnchor       = relPoint{0.16, 0.90}
	addAccountAnchor = relPoint{0.16, 0.96}
	continueAnchor   = relPoint{0.42, 0.82}
	emailAnchor      = relPoint{0.40, 0.28}
	passwordAnchor   = relPoint{0.40, 0.36}
	loginBtnAnchor   = relPoint{0.55, 0.44}
)

type relPoint struct {
	X, Y float64
}

// logoutScrollAmount is a strong downward flick of the account list.
const logoutScrollAmount = -1600

// Panel restricts template search to a window region. The account
// list and its buttons live in the left half.
type Panel int

const (
	PanelAny Panel = iota
	PanelLeft
)

// Surface is everything the login flow needs from the launcher
// window: classification, template lookup, and input.
type Surface interface {
	EnsureVisible(ctx context.Context) bool
	Scene(ctx context.Context) (*vision.Match, bool)
	// FindButton runs the full confidence ladder over the whole window.
	FindButton(ctx context.Context, name string) (image.Point, bool)
	// FindIn probes a single confidence in one panel.
	FindIn(ctx context.Context, name string, panel Panel, confidence float64, grayscale bool) (image.Point, bool)
	Click(ctx context.Context, pt image.Point)
	ClickRelative(ctx context.Context, rx, ry float64)
	// SetLoginFields writes both credentials straight into the form's
	// native text inputs. False means the form has no such controls
	// and input injection is needed.
	SetLoginFields(ctx context.Context, email, password string) bool
	HoverRelative(ctx context.Context, rx, ry float64)
	ScrollFromAvatar(ctx context.Context, amount int)
	// EnterText clears the focused field and types the value,
	// clipboard first with a per-character fallback.
	EnterText(ctx context.Context, text string, verify bool)
	GameWindowPresent(ctx context.Context) bool
}

type clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type wallClock struct{}

func (wallClock) Now() time.Time        { return time.Now() }
func (wallClock) Sleep(d time.Duration) { time.Sleep(d) }

// LoginConfig bounds the login attempt.
type LoginConfig struct {
	StepDelay        time.Duration
	ScenePollDelay   time.Duration
	StateLoopTries   int
	LogoutScrolls    int
	GameStartTimeout time.Duration
}

func (c LoginConfig) withDefaults() LoginConfig {
	if c.StepDelay <= 0 {
		c.StepDelay = 200 * time.Millisecond
	}
	if c.ScenePollDelay <= 0 {
		c.ScenePollDelay = 200 * time.Millisecond
	}
	if c.StateLoopTries <= 0 {
		c.StateLoopTries = 90
	}
	if c.LogoutScrolls <= 0 {
		c.LogoutScrolls = 5
	}
	if c.GameStartTimeout <= 0 {
		c.GameStartTimeout = 30 * time.Second
	}
	return c
}

// LoginFlow walks launcher scenes until the credentials are submitted
// and the game client window appears.
type LoginFlow struct {
	surface Surface
	cfg     LoginConfig
	clock   clock
}

func NewLoginFlow(surface Surface, cfg LoginConfig) *LoginFlow {
	return &LoginFlow{surface: surface, cfg: cfg.withDefaults(), clock: wallClock{}}
}

func (f *LoginFlow) withClock(c clock) *LoginFlow {
	f.clock = c
	return f
}

// Run performs one login attempt. Kinds of the returned error:
// InvalidCredentials when the launcher shows the login-error
// indicator, GameStartTimeout when the client never appeared, and
// Transient for everything worth a retry.
func (f *LoginFlow) Run(ctx context.Context, creds Credentials) error {
	log := trace.Logger(ctx)

	if !f.surface.EnsureVisible(ctx) {
		return errors.New(errors.Transient, "launcher window could not be shown")
	}

	if !f.awaitMainMenu(ctx, 10) {
		log.Warn("main menu not seen, poking the avatar")
		f.surface.ClickRelative(ctx, avatarAnchor.X, avatarAnchor.Y)
		f.clock.Sleep(time.Second)
		if !f.awaitMainMenu(ctx, 8) {
			return errors.New(errors.Transient, "launcher main menu not found")
		}
	}

	f.surface.ClickRelative(ctx, avatarAnchor.X, avatarAnchor.Y)
	f.clock.Sleep(time.Second)

	madeProgress := false

loop:
	for i := 0; i < f.cfg.StateLoopTries; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.Canceled, "login canceled")
		}
		m, ok := f.surface.Scene(ctx)
		if !ok {
			f.clock.Sleep(f.cfg.ScenePollDelay)
			continue
		}
		log.Info("launcher scene", "scene", m.Scene, "distance", m.Distance)

		switch m.Scene {
		case SceneLoginMenu:
			if err := f.submitCredentials(ctx, creds); err != nil {
				return err
			}
			madeProgress = true
			break loop

		case SceneAccountActive:
			if !f.logout(ctx) {
				return errors.New(errors.Transient, "logout button not found after scrolling")
			}
			madeProgress = true

		case SceneAccountCard:
			if !f.dismissAccountCard(ctx) {
				return errors.New(errors.Transient, "account card cross not found")
			}
			madeProgress = true

		case SceneLogoutConfirm:
			f.confirmLogout(ctx)
			madeProgress = true

		case SceneMainMenu:
			f.surface.ClickRelative(ctx, avatarAnchor.X, avatarAnchor.Y)
			f.clock.Sleep(time.Second)

		default:
			f.clock.Sleep(f.cfg.ScenePollDelay)
		}
	}

	if !madeProgress {
		// starting the game here could burn the account on a stale session
		return errors.New(errors.Transient, "no progress after opening the account panel")
	}

	f.awaitMainMenu(ctx, 20)

	if _, ok := f.findPlay(ctx); !ok {
		if f.loginErrorShown(ctx) {
			return errors.New(errors.InvalidCredentials, "login error indicator after submit, play button missing")
		}
	}

	f.surface.HoverRelative(ctx, playAnchor.X, playAnchor.Y)
	f.clock.Sleep(time.Second)
	f.surface.ClickRelative(ctx, playAnchor.X, playAnchor.Y)
	f.clock.Sleep(f.cfg.StepDelay)

	deadline := f.clock.Now().Add(f.cfg.GameStartTimeout)
	for f.clock.Now().Before(deadline) {
		if f.surface.GameWindowPresent(ctx) {
			log.Info("game client window detected")
			return nil
		}
		f.clock.Sleep(500 * time.Millisecond)
	}
	return errors.New(errors.GameStartTimeout, "game window did not appear after pressing play")
}

func (f *LoginFlow) awaitMainMenu(ctx context.Context, tries int) bool {
	for i := 0; i < tries; i++ {
		if m, ok := f.surface.Scene(ctx); ok && m.Scene == SceneMainMenu {
			return true
		}
		f.clock.Sleep(f.cfg.ScenePollDelay)
	}
	return false
}

// submitCredentials fills both fields and presses the login button,
// then watches briefly for the invalid-credentials indicator. Direct
// set-value on the native inputs comes first; template location with
// typed input is the fallback.
func (f *LoginFlow) submitCredentials(ctx context.Context, creds Credentials) error {
	log := trace.Logger(ctx)

	if f.surface.SetLoginFields(ctx, creds.Email, creds.Password) {
		log.Debug("credentials written to native fields")
	} else {
		f.typeCredentials(ctx, creds)
	}
	f.clock.Sleep(f.cfg.StepDelay)

	if pt, ok := f.surface.FindButton(ctx, tmplLoginBtn); ok {
		f.surface.Click(ctx, pt)
	} else {
		log.Warn("login button template missed, using relative anchor")
		f.surface.ClickRelative(ctx, loginBtnAnchor.X, loginBtnAnchor.Y)
	}
	f.clock.Sleep(f.cfg.StepDelay)

	if f.loginErrorShown(ctx) {
		return errors.New(errors.InvalidCredentials, "login error indicator detected")
	}
	return nil
}

func (f *LoginFlow) typeCredentials(ctx context.Context, creds Credentials) {
	log := trace.Logger(ctx)

	if pt, ok := f.surface.FindButton(ctx, tmplEmailField); ok {
		f.surface.Click(ctx, pt)
	} else {
		log.Warn("email field template missed, using relative anchor")
		f.surface.ClickRelative(ctx, emailAnchor.X, emailAnchor.Y)
	}
	f.clock.Sleep(f.cfg.StepDelay)
	f.surface.EnterText(ctx, creds.Email, true)

	if pt, ok := f.surface.FindButton(ctx, tmplPassword); ok {
		f.surface.Click(ctx, pt)
	} else {
		log.Warn("password field template missed, using relative anchor")
		f.surface.ClickRelative(ctx, passwordAnchor.X, passwordAnchor.Y)
	}
	f.clock.Sleep(f.cfg.StepDelay)
	// never round-trip the password through the clipboard check
	f.surface.EnterText(ctx, creds.Password, false)
}

func (f *LoginFlow) loginErrorShown(ctx context.Context) bool {
	for i := 0; i < 10; i++ {
		if _, ok := f.surface.FindIn(ctx, tmplLoginError, PanelAny, 0.86, false); ok {
			return true
		}
		if _, ok := f.surface.FindIn(ctx, tmplLoginError, PanelAny, 0.80, true); ok {
			return true
		}
		f.clock.Sleep(f.cfg.ScenePollDelay)
	}
	return false
}

func (f *LoginFlow) findPlay(ctx context.Context) (image.Point, bool) {
	for i := 0; i < 10; i++ {
		if pt, ok := f.surface.FindIn(ctx, tmplPlayBtn, PanelAny, 0.86, false); ok {
			return pt, true
		}
		if pt, ok := f.surface.FindIn(ctx, tmplPlayBtn, PanelAny, 0.80, true); ok {
			return pt, true
		}
		f.clock.Sleep(f.cfg.ScenePollDelay)
	}
	return image.Point{}, false
}

// logout clicks the sign-out entry, scrolling the account list down a
// bounded number of times until it shows up.
func (f *LoginFlow) logout(ctx context.Context) bool {
	log := trace.Logger(ctx)
	for i := 0; i < f.cfg.LogoutScrolls; i++ {
		if pt, ok := f.surface.FindIn(ctx, tmplLogout, PanelLeft, 0.84, false); ok {
			f.surface.Click(ctx, pt)
			f.clock.Sleep(f.cfg.StepDelay)
			return true
		}
		log.Debug("logout entry not visible, scrolling account list", "try", i+1)
		f.surface.ScrollFromAvatar(ctx, logoutScrollAmount)
		f.clock.Sleep(f.cfg.StepDelay)
	}
	return false
}

func (f *LoginFlow) dismissAccountCard(ctx context.Context) bool {
	for _, name := range []string{tmplCross, tmplCrossAlt} {
		if pt, ok := f.surface.FindIn(ctx, name, PanelLeft, 0.80, false); ok {
			f.surface.Click(ctx, pt)
			f.clock.Sleep(f.cfg.StepDelay)
			return true
		}
		if pt, ok := f.surface.FindIn(ctx, name, PanelLeft, 0.78, false); ok {
			f.surface.Click(ctx, pt)
			f.clock.Sleep(f.cfg.StepDelay)
			return true
		}
	}
	return false
}

func (f *LoginFlow) confirmLogout(ctx context.Context) {
	if pt, ok := f.surface.FindIn(ctx, tmplContinue, PanelLeft, 0.84, false); ok {
		f.surface.Click(ctx, pt)
	} else if pt, ok := f.surface.FindIn(ctx, tmplContinue, PanelAny, 0.80, false); ok {
		f.surface.Click(ctx, pt)
	} else if pt, ok := f.surface.FindIn(ctx, tmplContinue, PanelAny, 0.75, true); ok {
		f.surface.Click(ctx, pt)
	} else {
		f.surface.ClickRelative(ctx, continueAnchor.X, continueAnchor.Y)
	}
	f.clock.Sleep(f.cfg.StepDelay)
	f.surface.ClickRelative(ctx, addAccountAnchor.X, addAccountAnchor.Y)
	f.clock.Sleep(f.cfg.StepDelay)
}
