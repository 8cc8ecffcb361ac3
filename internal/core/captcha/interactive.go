package captcha

import (
	"context"
	"fmt"
	"time"

	perr "captchahub/internal/platform/errors"
)

// Checkbox challenge page structure
const (
	xpathCheckboxFrame  = "//div[@class='g-recaptcha']//iframe"
	xpathChallengeFrame = "//iframe[@title='recaptcha challenge']"
	idCheckbox          = "recaptcha-anchor"
	idResponse          = "g-recaptcha-response"
)

// Elements a client may ask Interact to act on
const (
	ElementVerifyButton = "recaptcha-verify-button"
	ElementTileWrapper  = "rc-image-tile-wrapper"
	ElementTileCheckbox = "rc-imageselect-checkbox"
)

// Markers stored in Data in place of challenge markup
const (
	MarkupFailed     = "<html><body><p>Something went wrong</p></body></html>"
	MarkupSuccessful = "<html><body><p>Successful</p></body></html>"
)

// InteractionStage tracks the progress of an interactive task
type InteractionStage int

const (
	StageNotStarted InteractionStage = iota
	StageCheckboxClicked
	StageChallengePresented
	StageSolving
	StageCompleted
)

func (s InteractionStage) String() string {
	switch s {
	case StageNotStarted:
		return "not_started"
	case StageCheckboxClicked:
		return "checkbox_clicked"
	case StageChallengePresented:
		return "challenge_presented"
	case StageSolving:
		return "solving"
	case StageCompleted:
		return "completed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// humanized pauses between browser actions
var (
	pauseBeforeCheckbox = [2]time.Duration{500 * time.Millisecond, 700 * time.Millisecond}
	pauseAfterCheckbox  = [2]time.Duration{1000 * time.Millisecond, 1500 * time.Millisecond}
	pauseAfterAction    = [2]time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}
)

// Stage returns the interaction stage
func (t *Task) Stage() InteractionStage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

func (t *Task) setStage(s InteractionStage) {
	t.mu.Lock()
	t.stage = s
	t.mu.Unlock()
}

// activeSession returns the open session, nil when none was started or it was released
func (t *Task) activeSession() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	return t.session
}

// StartInteraction opens a browser on the challenge page and clicks the checkbox
// returns false without side effects when the task is not interactive or the browser is not configured
func (t *Task) StartInteraction(ctx context.Context) (bool, error) {
	log := t.log()
	if !t.IsInteractive() {
		log.Info().Msg("interaction requested for a non interactive task")
		return false, nil
	}
	b := t.env.browser
	if b.ExtensionPath == "" || b.DriverBinary == "" || t.env.launcher == nil {
		log.Info().
			Bool("extension", b.ExtensionPath != "").
			Bool("driver", b.DriverBinary != "").
			Msg("browser automation not configured")
		return false, nil
	}

	t.imu.Lock()
	defer t.imu.Unlock()

	t.mu.Lock()
	started := t.session != nil
	t.mu.Unlock()
	if started {
		return false, perr.Conflictf("interaction for task %s already started", t.id)
	}

	sess, err := t.env.launcher.Launch(ctx, LaunchOptions{
		Headless:      b.Headless,
		ExtensionPath: b.ExtensionPath,
		BrowserBinary: b.BrowserBinary,
		DriverBinary:  b.DriverBinary,
	})
	if err != nil {
		return false, t.automationFailure("launch", err)
	}
	t.mu.Lock()
	t.session = sess
	t.mu.Unlock()

	if err := sess.Navigate(ctx, t.challenge.Source); err != nil {
		return false, t.automationFailure("navigate", err)
	}
	if t.init != nil {
		if err := t.init(ctx, sess); err != nil {
			return false, t.automationFailure("initialize", err)
		}
	}
	if err := sess.WaitUntil(ctx, b.ReadyTimeout, DocumentComplete); err != nil {
		return false, t.automationFailure("page load", err)
	}
	if err := t.clickCheckbox(ctx, sess); err != nil {
		return false, t.automationFailure("checkbox", err)
	}
	t.setStage(StageCheckboxClicked)
	t.env.emit(Event{Kind: EventInteractionStarted, TaskID: t.id, ResultType: t.resultType})

	done, err := t.complete(ctx, sess)
	if err != nil || done {
		return done, err
	}
	if err := t.captureChallenge(ctx, sess); err != nil {
		return false, t.automationFailure("capture", err)
	}
	t.setStage(StageChallengePresented)
	return true, nil
}

func (t *Task) clickCheckbox(ctx context.Context, sess Session) error {
	frame, err := sess.FindByXPath(ctx, xpathCheckboxFrame)
	if err != nil {
		return err
	}
	if err := sess.SwitchToFrame(ctx, frame); err != nil {
		return err
	}
	box, err := sess.FindByID(ctx, idCheckbox)
	if err != nil {
		return err
	}
	if err := t.env.human.Pause(ctx, pauseBeforeCheckbox[0], pauseBeforeCheckbox[1]); err != nil {
		return err
	}
	if err := box.Click(ctx); err != nil {
		return err
	}
	if err := sess.SwitchToTop(ctx); err != nil {
		return err
	}
	return t.env.human.Pause(ctx, pauseAfterCheckbox[0], pauseAfterCheckbox[1])
}

// Interact clicks the verify button or the index-th tile of the given class inside the challenge
// returns true once the challenge is solved
func (t *Task) Interact(ctx context.Context, element string, index int) (bool, error) {
	switch element {
	case ElementVerifyButton, ElementTileWrapper, ElementTileCheckbox:
	default:
		return false, perr.WithField(perr.InvalidArgf("unknown challenge element %q", element), "element")
	}

	t.imu.Lock()
	defer t.imu.Unlock()

	sess := t.activeSession()
	if sess == nil {
		return false, perr.Conflictf("no interaction running for task %s", t.id)
	}
	t.setStage(StageSolving)

	frame, err := sess.FindByXPath(ctx, xpathChallengeFrame)
	if err != nil {
		return false, t.automationFailure("challenge frame", err)
	}
	if err := sess.SwitchToFrame(ctx, frame); err != nil {
		return false, t.automationFailure("challenge frame", err)
	}

	var target Element
	if element == ElementVerifyButton {
		if target, err = sess.FindByID(ctx, element); err != nil {
			return false, t.automationFailure("verify button", err)
		}
	} else {
		tiles, err := sess.FindAllByClass(ctx, element)
		if err != nil {
			return false, t.automationFailure("tiles", err)
		}
		if index < 0 || index >= len(tiles) {
			t.log().Debug().Int("index", index).Int("tiles", len(tiles)).Msg("tile index out of range")
			if err := sess.SwitchToTop(ctx); err != nil {
				return false, t.automationFailure("switch back", err)
			}
			t.SetData(MarkupFailed)
			t.setStage(StageChallengePresented)
			return false, nil
		}
		target = tiles[index]
	}

	if err := target.Click(ctx); err != nil {
		return false, t.automationFailure("click", err)
	}
	if err := t.env.human.Pause(ctx, pauseAfterAction[0], pauseAfterAction[1]); err != nil {
		return false, t.automationFailure("pause", err)
	}
	if err := sess.SwitchToTop(ctx); err != nil {
		return false, t.automationFailure("switch back", err)
	}

	done, err := t.complete(ctx, sess)
	if err != nil {
		return false, err
	}
	if done {
		t.SetData(MarkupSuccessful)
		return true, nil
	}
	if err := t.captureChallenge(ctx, sess); err != nil {
		return false, t.automationFailure("capture", err)
	}
	t.setStage(StageChallengePresented)
	return false, nil
}

// Reload re-captures the challenge markup into Data
func (t *Task) Reload(ctx context.Context) error {
	t.imu.Lock()
	defer t.imu.Unlock()

	sess := t.activeSession()
	if sess == nil {
		return perr.Conflictf("no interaction running for task %s", t.id)
	}
	if err := t.captureChallenge(ctx, sess); err != nil {
		return t.automationFailure("capture", err)
	}
	return nil
}

// IsInteractionComplete checks the response token and, when present, stores it and releases the browser
func (t *Task) IsInteractionComplete(ctx context.Context) (bool, error) {
	t.imu.Lock()
	defer t.imu.Unlock()

	if t.Stage() == StageCompleted {
		return true, nil
	}
	sess := t.activeSession()
	if sess == nil {
		return false, nil
	}
	return t.complete(ctx, sess)
}

// complete expects imu held and the top document selected
func (t *Task) complete(ctx context.Context, sess Session) (bool, error) {
	el, err := sess.FindByID(ctx, idResponse)
	if err != nil {
		return false, t.automationFailure("response", err)
	}
	token, err := el.Attribute(ctx, "value")
	if err != nil {
		return false, t.automationFailure("response", err)
	}
	if token == "" {
		return false, nil
	}
	t.SetResult(token)
	if err := t.closeSession(); err != nil {
		t.log().Warn().Err(err).Msg("closing browser session")
	}
	t.setStage(StageCompleted)
	t.env.emit(Event{Kind: EventInteractionComplete, TaskID: t.id, ResultType: t.resultType})
	return true, nil
}

func (t *Task) captureChallenge(ctx context.Context, sess Session) error {
	frame, err := sess.FindByXPath(ctx, xpathChallengeFrame)
	if err != nil {
		return err
	}
	if err := sess.SwitchToFrame(ctx, frame); err != nil {
		return err
	}
	src, err := sess.PageSource(ctx)
	if err != nil {
		return err
	}
	if err := sess.SwitchToTop(ctx); err != nil {
		return err
	}
	t.SetData(src)
	return nil
}

// Abort releases the browser session of an abandoned task
func (t *Task) Abort() error {
	t.mu.Lock()
	open := t.session != nil && !t.closed
	t.mu.Unlock()
	if !open {
		return nil
	}
	err := t.closeSession()
	t.env.emit(Event{Kind: EventInteractionAborted, TaskID: t.id, ResultType: t.resultType})
	return err
}

// closeSession closes the session exactly once and reports the close error to every caller
func (t *Task) closeSession() error {
	t.mu.Lock()
	sess := t.session
	t.mu.Unlock()
	if sess == nil {
		return nil
	}
	t.closeOnce.Do(func() {
		t.closeErr = sess.Close()
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
	})
	return t.closeErr
}

// automationFailure records a failed step on the task and releases the browser
func (t *Task) automationFailure(step string, err error) error {
	t.Fail(fmt.Sprintf("browser automation failed at %s: %v", step, err))
	if cerr := t.closeSession(); cerr != nil {
		t.log().Debug().Err(cerr).Msg("closing browser session")
	}
	t.log().Warn().Err(err).Str("step", step).Msg("browser automation failed")
	t.env.emit(Event{Kind: EventInteractionFailed, TaskID: t.id, ResultType: t.resultType, Detail: step})
	return perr.WithOp(perr.Wrapf(err, perr.ErrorCodeUpstream, "browser automation failed at %s", step), "captcha.interactive")
}
