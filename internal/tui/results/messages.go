package results

import "github.com/joacominatel/kqlpad/internal/app"

// RetryMsg asks the app to run a failed statement again.
type RetryMsg struct {
	Outcome app.Outcome
}

// StatusNotifyMsg tells the app to show a message in the status bar
type StatusNotifyMsg struct {
	Message string
}
