package reconciler

import (
	"context"
	"errors"
	"os/exec"
)

// Notifier mirrors alerts to the platform's notification center.
type Notifier interface {
	// RequestPermission reports whether notifications may be shown. It may
	// block; the reconciler calls it in the background.
	RequestPermission(ctx context.Context) (bool, error)
	Notify(title, body string) error
}

// ErrNoNotifier is returned when no desktop notification tool is installed.
var ErrNoNotifier = errors.New("notify-send not found")

// DesktopNotifier shows notifications through notify-send.
type DesktopNotifier struct {
	path string
}

// NewDesktopNotifier builds a notifier; permission is resolved lazily.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{}
}

// RequestPermission grants permission when notify-send is available.
func (n *DesktopNotifier) RequestPermission(context.Context) (bool, error) {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		return false, ErrNoNotifier
	}
	n.path = path
	return true, nil
}

// Notify shows one notification.
func (n *DesktopNotifier) Notify(title, body string) error {
	if n.path == "" {
		return ErrNoNotifier
	}
	return exec.Command(n.path, "--app-name=monitor", "--urgency=critical", title, body).Run()
}
