package tui

import "fmt"

// Read-only view types.
const (
	ViewInspectTokens    = "inspect_tokens"
	ViewInspectRecording = "inspect_recording"
)

// Run starts the read-only TUI for viewType.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return RunInspectTUI(viewType, data)
}

// IsTUISupported returns true if the view type has a read-only TUI.
// The interactive receive view is started with RunReceiver instead.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if v == viewType {
			return true
		}
	}
	return false
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{
		ViewInspectTokens,
		ViewInspectRecording,
	}
}
