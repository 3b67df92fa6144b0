package backend

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v3/pkg/application"
)

// StateEvent carries a WizardState to the frontend after every change
const StateEvent = "wizard:state"

const (
	extensionsPageURL = "chrome://extensions/"

	pathCopiedImage = "/tutorial_paste_path2.png"
)

// WizardService owns the wizard state and its transitions. The frontend
// calls its methods and re-renders on StateEvent.
type WizardService struct {
	host        Host
	events      Emitter
	poller      *Poller
	manifestURL string

	mu          sync.Mutex
	gen         uint64
	started     bool
	step        WizardStep
	loading     bool
	err         string
	installPath string
	modal       *ModalContent
	lastCheck   *CheckResult
}

func NewWizardService(host Host, events Emitter, poller *Poller, manifestURL string) *WizardService {
	w := &WizardService{
		host:        host,
		events:      events,
		poller:      poller,
		manifestURL: manifestURL,
	}
	w.resetLocked()
	return w
}

func (w *WizardService) resetLocked() {
	w.started = false
	w.step = StepWelcome
	w.loading = true
	w.err = ""
	w.installPath = ""
	w.modal = nil
	w.lastCheck = nil
}

// Initialize resolves the install path and runs the startup update check.
// It only runs once per session; later calls return the current state.
func (w *WizardService) Initialize(ctx context.Context) WizardState {
	w.mu.Lock()
	if w.started {
		state := w.snapshotLocked()
		w.mu.Unlock()
		return state
	}
	w.started = true
	w.loading = true
	w.err = ""
	gen := w.gen
	w.mu.Unlock()
	w.emitState()

	err := w.startup(ctx, gen)

	w.mu.Lock()
	if w.gen != gen {
		// Reloaded while starting up, the new session owns the state.
		state := w.snapshotLocked()
		w.mu.Unlock()
		return state
	}
	if err != nil {
		log.Errorf("wizard initialization failed: %v", err)
		w.err = "Error: " + failureDetail(err)
	}
	w.loading = false
	state := w.snapshotLocked()
	w.mu.Unlock()

	w.emit(state)
	return state
}

func (w *WizardService) startup(ctx context.Context, gen uint64) error {
	path, err := w.host.ResolvePath(ctx)
	if err != nil {
		return &Failure{Kind: StartupFailure, Op: "resolve install path", Err: err}
	}

	// Arming under the lock orders it against Reload, which bumps the
	// generation and stops the poller under the same lock.
	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return nil
	}
	w.installPath = path
	w.poller.OnResult(func(result CheckResult) {
		w.recordCheck(gen, result)
	})
	err = w.poller.Arm(ctx, w.manifestURL)
	w.mu.Unlock()
	if err != nil {
		return &Failure{Kind: StartupFailure, Op: "arm update poller", Err: err}
	}
	log.Infof("extension install path: %s", path)

	if err := w.poller.CheckNow(ctx, w.manifestURL); err != nil {
		return &Failure{Kind: StartupFailure, Op: "startup update check", Err: err}
	}
	return nil
}

// Reload resets the wizard as if the application had just started. It is
// the only way out of a startup failure.
func (w *WizardService) Reload(ctx context.Context) WizardState {
	w.mu.Lock()
	w.gen++
	w.resetLocked()
	w.poller.Stop()
	w.mu.Unlock()
	w.emitState()

	return w.Initialize(ctx)
}

// State returns the current snapshot
func (w *WizardService) State() WizardState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Advance moves to the next step
func (w *WizardService) Advance() WizardState {
	return w.update(func() bool {
		if !w.canAdvanceLocked() {
			return false
		}
		w.step++
		return true
	})
}

// Retreat moves back one step. There is no way back from the first or the
// last step.
func (w *WizardService) Retreat() WizardState {
	return w.update(func() bool {
		if !w.canRetreatLocked() {
			return false
		}
		w.step--
		return true
	})
}

// OpenModal shows a modal, replacing any modal already open
func (w *WizardService) OpenModal(title, message, image string) WizardState {
	return w.update(func() bool {
		w.modal = &ModalContent{Title: title, Message: message, Image: image}
		return true
	})
}

// CloseModal dismisses the current modal
func (w *WizardService) CloseModal() WizardState {
	return w.update(func() bool {
		if w.modal == nil {
			return false
		}
		w.modal = nil
		return true
	})
}

// CopyInstallPath puts the install path on the clipboard and explains where
// to paste it.
func (w *WizardService) CopyInstallPath(ctx context.Context) WizardState {
	path := w.State().InstallPath

	if err := w.host.CopyToClipboard(path); err != nil {
		log.Warn(&Failure{Kind: ActionFailure, Op: "copy install path", Err: err})
		return w.OpenModal("Error", "Unable to copy the path.", "")
	}

	return w.OpenModal(
		"Path copied!",
		"1. Click the address bar at the TOP of the window that just opened.\n"+
			"2. Paste (Ctrl+V) the path and press Enter.\n"+
			"3. Click the 'Select folder' button at the BOTTOM.",
		pathCopiedImage,
	)
}

// OpenExtensionsPage copies the extensions page address and launches the
// browser so the user can paste it.
func (w *WizardService) OpenExtensionsPage(ctx context.Context) WizardState {
	err := w.host.CopyToClipboard(extensionsPageURL)
	if err == nil {
		err = w.host.OpenExtensionsPage(ctx)
	}
	if err != nil {
		log.Warn(&Failure{Kind: ActionFailure, Op: "open extensions page", Err: err})
		return w.OpenModal("Error", "Error while opening Chrome: "+err.Error(), "")
	}

	return w.OpenModal(
		"Link copied!",
		"1. The address '"+extensionsPageURL+"' is copied.\n"+
			"2. Chrome is opening.\n"+
			"3. Paste (Ctrl+V) it in the address bar.",
		"",
	)
}

// Quit stops background checks and terminates the application
func (w *WizardService) Quit() {
	log.Info("quit requested")
	w.poller.Stop()
	w.host.Terminate()
}

// ServiceStartup begins the first session as soon as the application runs.
// A later Initialize call from the frontend returns the same session.
func (w *WizardService) ServiceStartup(ctx context.Context, options application.ServiceOptions) error {
	go w.Initialize(ctx)
	return nil
}

// ServiceShutdown is called by the application when it exits
func (w *WizardService) ServiceShutdown() error {
	w.poller.Stop()
	return nil
}

// recordCheck keeps the outcome of a check started by session gen
func (w *WizardService) recordCheck(gen uint64, result CheckResult) {
	w.update(func() bool {
		if w.gen != gen {
			return false
		}
		w.lastCheck = &result
		return true
	})
}

func (w *WizardService) canAdvanceLocked() bool {
	return w.step < StepConnected && !w.loading && w.err == ""
}

func (w *WizardService) canRetreatLocked() bool {
	return w.step > StepWelcome && w.step < StepConnected
}

func (w *WizardService) snapshotLocked() WizardState {
	state := WizardState{
		Step:        w.step,
		StepName:    w.step.String(),
		Loading:     w.loading,
		Error:       w.err,
		InstallPath: w.installPath,
		CanAdvance:  w.canAdvanceLocked(),
		CanRetreat:  w.canRetreatLocked(),
	}
	if w.modal != nil {
		modal := *w.modal
		state.Modal = &modal
	}
	if w.lastCheck != nil {
		check := *w.lastCheck
		state.LastCheck = &check
	}
	return state
}

// update applies fn under the lock and emits the new state when fn reports
// a change.
func (w *WizardService) update(fn func() bool) WizardState {
	w.mu.Lock()
	changed := fn()
	state := w.snapshotLocked()
	w.mu.Unlock()

	if changed {
		w.emit(state)
	}
	return state
}

func (w *WizardService) emitState() {
	w.emit(w.State())
}

func (w *WizardService) emit(state WizardState) {
	if w.events != nil {
		w.events.Emit(StateEvent, state)
	}
}
