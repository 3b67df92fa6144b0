package backend

import "time"

// WizardStep is one screen of the onboarding sequence
type WizardStep int

const (
	StepWelcome WizardStep = iota + 1
	StepOpenExtensionsPage
	StepLoadUnpacked
	StepConnected
)

func (s WizardStep) String() string {
	switch s {
	case StepWelcome:
		return "welcome"
	case StepOpenExtensionsPage:
		return "open-extensions-page"
	case StepLoadUnpacked:
		return "load-unpacked"
	case StepConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ModalContent is the dialog currently shown on top of the wizard
type ModalContent struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Image   string `json:"image,omitempty"`
}

// Trigger names what caused an update check
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerTimer   Trigger = "timer"
	TriggerManual  Trigger = "manual"
)

// CheckResult describes a completed update check
type CheckResult struct {
	Trigger Trigger   `json:"trigger"`
	At      time.Time `json:"at"`
	Updated bool      `json:"updated"`
	Error   string    `json:"error,omitempty"`
}

// WizardState is the snapshot the frontend renders from
type WizardState struct {
	Step        WizardStep    `json:"step"`
	StepName    string        `json:"stepName"`
	Loading     bool          `json:"loading"`
	Error       string        `json:"error,omitempty"`
	InstallPath string        `json:"installPath"`
	Modal       *ModalContent `json:"modal,omitempty"`
	CanAdvance  bool          `json:"canAdvance"`
	CanRetreat  bool          `json:"canRetreat"`
	LastCheck   *CheckResult  `json:"lastCheck,omitempty"`
}
