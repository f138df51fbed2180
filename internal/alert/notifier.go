package alert

import (
	"context"
)

// Notifier adapts the alert manager to core.INotifier for components that
// just want to say something to the operator.
type Notifier struct {
	manager *AlertManager
	title   string
}

func NewNotifier(manager *AlertManager, title string) *Notifier {
	return &Notifier{manager: manager, title: title}
}

// Send delivers an informational message through every configured channel.
func (n *Notifier) Send(ctx context.Context, message string) {
	n.manager.Alert(ctx, n.title, message, Info, nil)
}
