// Package game drives the post-login client: tutorial skip, intro
// video skip, two reward pickups, and shutdown on the terminal scene.
package game

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/trace"
	"github.com/VaynZXC/tanki/internal/vision"
)

// Scene labels produced by the classifier for the game client.
const (
	SceneLoading          = "game_loading"
	SceneCutscene         = "game_cutscena"
	SceneTutorial1        = "game_tutorial1"
	SceneTutorial2        = "game_tutorial2"
	SceneTutorialMenu     = "game_tutorial_menu"
	SceneTutorialMenuConf = "game_tutorial_menu_conf"
	SceneVideo            = "game_video"
	SceneRewardIntro      = "game_nagrada_screen1"
	SceneRewardClaim      = "game_nagrada_screen2"
	SceneRewardList       = "game_nagrada_screen3"
	SceneTankSelect       = "game_vibor_tanka"
	SceneHangar           = "game_ungar"
	SceneRewardCode       = "game_nagrada_code"
)

// UI-button template names under the templates directory.
const (
	tmplSkipTutorial1    = "skip_tutorial_btn1.png"
	tmplSkipTutorial1Alt = "skip_tutorial_btn1_1.png"
	tmplSkipTutorial2    = "skip_tutorial_btn2.png"
	tmplClaimReward      = "poluchit_nagradu.png"
)

// Phase coarsely gates which scenes are trusted. Transitions are
// one-directional: pre, then tutorial, then post.
type Phase int

const (
	PhasePre Phase = iota
	PhaseTutorial
	PhasePost
)

func (p Phase) String() string {
	return [...]string{"pre", "tutorial", "post"}[p]
}

// StageKind names one step of the post-tutorial pipeline.
type StageKind int

const (
	StageSkipIntro StageKind = iota // dismiss the intro video
	StageAckIntro                   // acknowledge the first reward screen
	StageSelect                     // scroll to and pick the reward icon
	StageConfirm                    // confirm the pick
	StageClaim                      // press the claim button
	StageHold                       // hold after claiming, then acknowledge
	StageAwaitList                  // wait for the list to come back
	StageFinal                      // wait for a terminal scene
)

func (k StageKind) String() string {
	return [...]string{"skip-intro", "ack-intro", "select", "confirm", "claim", "hold", "await-list", "final"}[k]
}

// Stage is the machine position: the step plus which reward it is
// operating on.
type Stage struct {
	Kind   StageKind
	Reward int
}

// Key is a key the flow can press in the game window.
type Key int

const (
	KeyEnter Key = iota
	KeyEscape
	KeySpace
)

// Screen classifies the current frame of the game window.
type Screen interface {
	Scene(ctx context.Context) (*vision.Match, bool)
}

// Actor injects input into the game window. Template clicks run the
// full confidence ladder internally and report whether they landed.
type Actor interface {
	PressKey(ctx context.Context, k Key)
	ClickTemplate(ctx context.Context, name string, timeout time.Duration) bool
	ClickReward(ctx context.Context, timeout time.Duration) bool
	LocateIcon(ctx context.Context, id string) (image.Point, bool)
	IconSelected(ctx context.Context, id string) bool
	DoubleClickAt(ctx context.Context, pt image.Point)
	MoveToAnchor(ctx context.Context)
	MoveToCenter(ctx context.Context)
	ScrollToTop(ctx context.Context)
	ScrollDown(ctx context.Context, steps int)
	CloseGame(ctx context.Context)
}

// Clock abstracts time so tests can run the machine instantly.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Switches is the operator stop/pause surface checked once per tick.
type Switches interface {
	Stopped() bool
	Paused() bool
}

// FlowConfig bounds the run.
type FlowConfig struct {
	RewardIDs      []string
	TerminalScenes []string
	StuckThreshold int
	GracePeriod    time.Duration
	FinalSeenLimit int
	TimeBudget     time.Duration
	TickInterval   time.Duration
	MaxScrollSteps int
}

func (c FlowConfig) withDefaults() FlowConfig {
	if len(c.RewardIDs) == 0 {
		c.RewardIDs = []string{"is7", "fv4005"}
	}
	if len(c.TerminalScenes) == 0 {
		c.TerminalScenes = []string{SceneHangar, SceneRewardCode}
	}
	if c.StuckThreshold <= 0 {
		c.StuckThreshold = 10
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 5 * time.Second
	}
	if c.FinalSeenLimit <= 0 {
		c.FinalSeenLimit = 3
	}
	if c.TimeBudget <= 0 {
		c.TimeBudget = 5 * time.Minute
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.MaxScrollSteps <= 0 {
		c.MaxScrollSteps = 60
	}
	return c
}

const (
	thinkDelay   = 400 * time.Millisecond
	settleDelay  = 2 * time.Second
	rewardWindow = 1800 * time.Millisecond
	buttonWindow = 1400 * time.Millisecond
	skipWindow   = 1200 * time.Millisecond
)

// Flow is the in-game stage machine.
type Flow struct {
	screen   Screen
	actor    Actor
	mem      *ScrollMemory
	switches Switches
	cfg      FlowConfig
	clock    Clock
	observe  func(Stage)

	stuck *StuckDetector

	phase            Phase
	stage            Stage
	classifyPaused   bool
	chosen           []string
	finalSeenOutside int
	rewardClickAt    time.Time
	finalWaitStart   time.Time
}

func NewFlow(screen Screen, actor Actor, mem *ScrollMemory, switches Switches, cfg FlowConfig) *Flow {
	cfg = cfg.withDefaults()
	return &Flow{
		screen:   screen,
		actor:    actor,
		mem:      mem,
		switches: switches,
		cfg:      cfg,
		clock:    realClock{},
		stuck:    NewStuckDetector(cfg.StuckThreshold),
		phase:    PhasePre,
	}
}

// WithClock replaces the wall clock, for tests.
func (f *Flow) WithClock(c Clock) *Flow {
	f.clock = c
	return f
}

// WithStageObserver registers fn to receive every stage transition,
// for status reporting. Called from the flow goroutine.
func (f *Flow) WithStageObserver(fn func(Stage)) *Flow {
	f.observe = fn
	return f
}

func (f *Flow) setStage(s Stage) {
	if s == f.stage {
		return
	}
	f.stage = s
	if f.observe != nil {
		f.observe(s)
	}
}

// Run executes ticks until a terminal scene is held for the grace
// period, the time budget expires, or the operator stops the run.
// The returned rewards are deduplicated in pick order.
func (f *Flow) Run(ctx context.Context) ([]string, error) {
	log := trace.Logger(ctx)
	deadline := f.clock.Now().Add(f.cfg.TimeBudget)

	for f.clock.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return f.result(), errors.Wrap(err, errors.Canceled, "game flow canceled")
		}
		if f.switches != nil && f.switches.Stopped() {
			return f.result(), errors.New(errors.Canceled, "stop requested")
		}
		if f.switches != nil && f.switches.Paused() {
			f.clock.Sleep(200 * time.Millisecond)
			continue
		}
		f.clock.Sleep(f.cfg.TickInterval)

		scene := ""
		if !f.classifyPaused {
			m, ok := f.screen.Scene(ctx)
			if !ok {
				continue
			}
			scene = normalizeScene(m.Scene)
			if scene == "" {
				log.Debug("skip non-game scene", "scene", m.Scene)
				continue
			}

			if f.isTerminal(scene) {
				if f.phase != PhasePost {
					f.finalSeenOutside++
					log.Debug("terminal scene outside post phase", "scene", scene, "count", f.finalSeenOutside)
					if f.finalSeenOutside >= f.cfg.FinalSeenLimit {
						log.Info("terminal scene repeatedly seen before post, finishing", "scene", scene)
						f.actor.CloseGame(ctx)
						return f.result(), nil
					}
					continue
				}
				if f.stage.Kind != StageFinal {
					f.setStage(Stage{Kind: StageFinal})
				}
			}

			if scene == SceneVideo && f.phase != PhasePost {
				log.Info("intro video before tutorial completion, jumping to post phase")
				f.phase = PhasePost
				f.setStage(Stage{Kind: StageSkipIntro})
			}

			if !f.phaseAllows(scene) {
				log.Debug("scene filtered by phase", "phase", f.phase, "scene", scene)
				continue
			}
			log.Info("scene", "phase", f.phase, "scene", scene, "distance", m.Distance)

			if f.stuck.Observe(scene) {
				log.Warn("stuck on scene, running recovery", "scene", scene)
				f.recover(ctx, scene)
				continue
			}
		}

		if f.handleScene(ctx, scene) {
			continue
		}

		if f.phase == PhasePost {
			if done := f.dispatchStage(ctx, scene); done {
				return f.result(), nil
			}
		}
	}

	return f.result(), errors.New(errors.TimeBudget, "time budget expired before terminal scene")
}

// normalizeScene maps bare aliases onto the game_ namespace and
// rejects labels that are not game scenes.
func normalizeScene(s string) string {
	if strings.HasPrefix(s, "game_") {
		return s
	}
	switch {
	case strings.HasPrefix(s, "nagrada"), strings.HasPrefix(s, "tutorial"):
		return "game_" + s
	}
	switch s {
	case "ungar", "loading", "cutscena", "video", "vibor_tanka":
		return "game_" + s
	}
	return ""
}

func (f *Flow) isTerminal(scene string) bool {
	for _, s := range f.cfg.TerminalScenes {
		if s == scene {
			return true
		}
	}
	return false
}

var (
	preAllowed = map[string]bool{
		SceneLoading:   true,
		SceneCutscene:  true,
		SceneTutorial1: true,
	}
	tutorialAllowed = map[string]bool{
		SceneTutorial1:        true,
		SceneTutorial2:        true,
		SceneTutorialMenu:     true,
		SceneTutorialMenuConf: true,
	}
)

func (f *Flow) phaseAllows(scene string) bool {
	switch f.phase {
	case PhasePre:
		return preAllowed[scene]
	case PhaseTutorial:
		return tutorialAllowed[scene]
	}
	return true
}

// handleScene covers the pre/tutorial scenes and the paused mechanical
// skip. Reports whether the tick is consumed.
func (f *Flow) handleScene(ctx context.Context, scene string) bool {
	log := trace.Logger(ctx)

	if f.classifyPaused {
		// keep pressing the skip confirmation until it lands
		f.actor.ClickTemplate(ctx, tmplSkipTutorial2, buttonWindow)
		f.classifyPaused = false
		f.phase = PhasePost
		return true
	}

	switch scene {
	case SceneLoading:
		if f.phase == PhaseTutorial {
			return true
		}
		f.clock.Sleep(300 * time.Millisecond)
		return true

	case SceneCutscene, SceneTutorial1, SceneTutorial2:
		log.Info("pressing enter", "scene", scene)
		f.clock.Sleep(thinkDelay)
		f.actor.PressKey(ctx, KeyEnter)
		if scene == SceneTutorial1 || scene == SceneTutorial2 {
			f.phase = PhaseTutorial
			f.mechanicalSkip(ctx)
		}
		return true

	case SceneTutorialMenu:
		log.Info("clicking tutorial skip")
		f.clock.Sleep(thinkDelay)
		if !f.actor.ClickTemplate(ctx, tmplSkipTutorial1, buttonWindow) {
			log.Warn("tutorial skip button not found")
		}
		return true

	case SceneTutorialMenuConf:
		log.Info("confirming tutorial skip")
		f.clock.Sleep(thinkDelay)
		if !f.actor.ClickTemplate(ctx, tmplSkipTutorial2, buttonWindow) {
			log.Warn("tutorial skip confirmation not found")
		}
		f.phase = PhasePost
		return true
	}
	return false
}

// mechanicalSkip runs the blind tutorial-skip sequence and pauses
// classification until the confirmation click on the next tick.
func (f *Flow) mechanicalSkip(ctx context.Context) {
	f.clock.Sleep(3 * time.Second)
	f.actor.PressKey(ctx, KeyEscape)
	f.clock.Sleep(500 * time.Millisecond)
	f.actor.MoveToCenter(ctx)
	if !f.actor.ClickTemplate(ctx, tmplSkipTutorial1, skipWindow) {
		f.actor.ClickTemplate(ctx, tmplSkipTutorial1Alt, skipWindow)
	}
	f.clock.Sleep(150 * time.Millisecond)
	f.actor.ClickTemplate(ctx, tmplSkipTutorial2, skipWindow)
	f.classifyPaused = true
}

// dispatchStage advances the post-phase pipeline one step. Returns
// true when the run finished successfully.
func (f *Flow) dispatchStage(ctx context.Context, scene string) bool {
	log := trace.Logger(ctx)

	switch f.stage.Kind {
	case StageSkipIntro:
		if scene != SceneVideo {
			return false
		}
		log.Info("skipping intro video")
		f.actor.PressKey(ctx, KeyEscape)
		f.clock.Sleep(150 * time.Millisecond)
		f.actor.PressKey(ctx, KeyEnter)
		f.clock.Sleep(400 * time.Millisecond)
		if m, ok := f.screen.Scene(ctx); ok && normalizeScene(m.Scene) == SceneVideo {
			f.actor.PressKey(ctx, KeyEscape)
			f.clock.Sleep(150 * time.Millisecond)
			f.actor.PressKey(ctx, KeyEnter)
			f.clock.Sleep(150 * time.Millisecond)
			f.actor.PressKey(ctx, KeySpace)
			f.clock.Sleep(100 * time.Millisecond)
			f.actor.PressKey(ctx, KeyEnter)
		}
		f.setStage(Stage{Kind: StageAckIntro})

	case StageAckIntro:
		if scene == SceneTankSelect {
			f.setStage(Stage{Kind: StageSelect})
			return false
		}
		log.Info("acknowledging reward intro")
		f.actor.PressKey(ctx, KeyEnter)
		f.clock.Sleep(150 * time.Millisecond)
		f.actor.PressKey(ctx, KeyEnter)
		if scene == SceneVideo {
			f.actor.PressKey(ctx, KeyEnter)
			f.clock.Sleep(100 * time.Millisecond)
			f.actor.PressKey(ctx, KeyEscape)
		}

	case StageSelect:
		if scene == SceneRewardIntro {
			// bounced back to the intro screen
			f.actor.PressKey(ctx, KeyEnter)
			f.clock.Sleep(150 * time.Millisecond)
			f.actor.PressKey(ctx, KeyEnter)
			f.setStage(Stage{Kind: StageAckIntro})
			return false
		}
		if scene != SceneTankSelect {
			return false
		}
		id := f.cfg.RewardIDs[f.stage.Reward]
		if !f.selectReward(ctx, id) {
			return false
		}
		f.chosen = append(f.chosen, id)
		log.Info("reward picked", "id", id)
		f.setStage(Stage{Kind: StageConfirm, Reward: f.stage.Reward})

	case StageConfirm:
		f.actor.PressKey(ctx, KeyEnter)
		f.setStage(Stage{Kind: StageClaim, Reward: f.stage.Reward})

	case StageClaim:
		if scene != SceneRewardClaim {
			if scene == SceneRewardIntro && f.stage.Reward == 0 {
				f.actor.PressKey(ctx, KeyEnter)
			}
			return false
		}
		if f.actor.ClickReward(ctx, rewardWindow) || f.actor.ClickTemplate(ctx, tmplClaimReward, buttonWindow) {
			f.rewardClickAt = f.clock.Now()
			f.setStage(Stage{Kind: StageHold, Reward: f.stage.Reward})
		}

	case StageHold:
		if f.clock.Now().Sub(f.rewardClickAt) < 5*time.Second {
			f.actor.ClickReward(ctx, 200*time.Millisecond)
			return false
		}
		f.actor.PressKey(ctx, KeyEnter)
		f.clock.Sleep(150 * time.Millisecond)
		f.actor.PressKey(ctx, KeyEnter)
		if f.stage.Reward+1 < len(f.cfg.RewardIDs) {
			f.setStage(Stage{Kind: StageAwaitList, Reward: f.stage.Reward + 1})
		} else {
			f.setStage(Stage{Kind: StageFinal})
		}

	case StageAwaitList:
		if scene == SceneTankSelect {
			f.setStage(Stage{Kind: StageSelect, Reward: f.stage.Reward})
		}

	case StageFinal:
		if f.isTerminal(scene) {
			if f.finalWaitStart.IsZero() {
				f.finalWaitStart = f.clock.Now()
			}
			if f.clock.Now().Sub(f.finalWaitStart) >= f.cfg.GracePeriod {
				log.Info("terminal scene held, closing game", "scene", scene)
				f.actor.CloseGame(ctx)
				return true
			}
			f.clock.Sleep(200 * time.Millisecond)
			return false
		}
		f.finalWaitStart = time.Time{}
		f.actor.PressKey(ctx, KeyEnter)
		f.clock.Sleep(400 * time.Millisecond)
	}
	return false
}

// selectReward brings the reward icon into view and double-clicks it.
// A remembered scroll count is replayed first; otherwise the list is
// scanned step by step from the top and the winning step persisted.
func (f *Flow) selectReward(ctx context.Context, id string) bool {
	log := trace.Logger(ctx)

	if saved := f.mem.Read(id); saved > 0 {
		f.actor.ScrollToTop(ctx)
		f.actor.ScrollDown(ctx, saved)
		if pt, ok := f.actor.LocateIcon(ctx, id); ok {
			f.clickIconSettled(ctx, id, pt)
			return true
		}
		log.Debug("remembered offset missed, rescanning", "id", id, "steps", saved)
	}

	f.actor.ScrollToTop(ctx)
	f.actor.MoveToAnchor(ctx)
	for used := 0; used < f.cfg.MaxScrollSteps; used++ {
		if pt, ok := f.actor.LocateIcon(ctx, id); ok {
			f.clickIconSettled(ctx, id, pt)
			if err := f.mem.Write(id, used); err != nil {
				log.Debug("scroll memory write failed", "id", id, "error", err)
			}
			return true
		}
		f.actor.ScrollDown(ctx, 1)
	}
	return false
}

// clickIconSettled waits out scroll inertia, re-locates to dodge stale
// coordinates, and double-clicks.
func (f *Flow) clickIconSettled(ctx context.Context, id string, pt image.Point) {
	f.clock.Sleep(settleDelay)
	if pt2, ok := f.actor.LocateIcon(ctx, id); ok {
		pt = pt2
	}
	f.actor.DoubleClickAt(ctx, pt)
}

// recover runs the scene-specific unstick action.
func (f *Flow) recover(ctx context.Context, scene string) {
	switch scene {
	case SceneTutorial1:
		f.actor.PressKey(ctx, KeyEnter)
		f.clock.Sleep(200 * time.Millisecond)
	case SceneCutscene, SceneVideo:
		f.actor.PressKey(ctx, KeyEscape)
		f.clock.Sleep(200 * time.Millisecond)
	case SceneLoading, SceneRewardList:
		f.actor.MoveToAnchor(ctx)
	case SceneTutorial2:
		f.actor.PressKey(ctx, KeyEscape)
		f.clock.Sleep(500 * time.Millisecond)
		f.actor.MoveToCenter(ctx)
		if !f.actor.ClickTemplate(ctx, tmplSkipTutorial1, skipWindow) {
			f.actor.ClickTemplate(ctx, tmplSkipTutorial1Alt, skipWindow)
		}
		f.classifyPaused = true
	case SceneTankSelect:
		f.recoverTankSelect(ctx)
	}
	f.clock.Sleep(200 * time.Millisecond)
}

func (f *Flow) recoverTankSelect(ctx context.Context) {
	f.actor.MoveToAnchor(ctx)

	for _, id := range f.cfg.RewardIDs {
		if f.actor.IconSelected(ctx, id) {
			f.actor.PressKey(ctx, KeyEnter)
			f.clock.Sleep(200 * time.Millisecond)
			return
		}
	}

	order := f.rewardOrder()
	for i, id := range order {
		clicked := false
		if pt, ok := f.actor.LocateIcon(ctx, id); ok {
			f.actor.DoubleClickAt(ctx, pt)
			clicked = true
		} else if f.selectReward(ctx, id) {
			clicked = true
		}
		if clicked {
			f.chosen = append(f.chosen, id)
			if f.phase == PhasePost {
				f.setStage(Stage{Kind: StageConfirm, Reward: f.rewardIndex(order[i])})
			}
			return
		}
	}
	// escape is not safe on this screen, a soft enter is
	f.actor.PressKey(ctx, KeyEnter)
}

// rewardOrder prefers the reward the machine is currently working on.
func (f *Flow) rewardOrder() []string {
	ids := f.cfg.RewardIDs
	if f.phase == PhasePost && f.stage.Reward > 0 && f.stage.Reward < len(ids) {
		order := make([]string, 0, len(ids))
		order = append(order, ids[f.stage.Reward])
		for i, id := range ids {
			if i != f.stage.Reward {
				order = append(order, id)
			}
		}
		return order
	}
	return ids
}

func (f *Flow) rewardIndex(id string) int {
	for i, v := range f.cfg.RewardIDs {
		if v == id {
			return i
		}
	}
	return 0
}

// result deduplicates the chosen rewards preserving pick order.
func (f *Flow) result() []string {
	seen := make(map[string]bool, len(f.chosen))
	var out []string
	for _, id := range f.chosen {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
