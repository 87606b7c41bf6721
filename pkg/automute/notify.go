package automute

import (
	"os"
	"path/filepath"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/retr0680/automute/pkg/automute/icon"
	"github.com/retr0680/automute/pkg/automute/util"
)

const notificationIconFilename = "automute.ico"

// Notifier provides a generic interface for sending notifications.
type Notifier interface {
	Notify(title string, message string)
}

// ToastNotifier sends desktop notifications through beeep.
type ToastNotifier struct {
	logger *zap.SugaredLogger
}

// NewToastNotifier creates a new instance of ToastNotifier.
func NewToastNotifier(logger *zap.SugaredLogger) (*ToastNotifier, error) {
	logger = logger.Named("notifier")
	logger.Debug("Created toast notifier instance")

	return &ToastNotifier{logger: logger}, nil
}

// Notify sends a toast notification. If the notification icon is missing, it creates it first.
func (tn *ToastNotifier) Notify(title, message string) {
	appIconPath := filepath.Join(os.TempDir(), notificationIconFilename)

	if err := tn.ensureIconFile(appIconPath); err != nil {
		tn.logger.Errorw("Failed to prepare toast notification icon", "error", err)
		return
	}

	tn.logger.Infow("Sending toast notification", "title", title, "message", message)

	if err := beeep.Notify(title, message, appIconPath); err != nil {
		tn.logger.Errorw("Failed to send toast notification", "error", err)
	}
}

func (tn *ToastNotifier) ensureIconFile(path string) error {
	if util.FileExists(path) {
		return nil
	}

	tn.logger.Debugw("Icon file missing, creating", "path", path)

	if err := os.WriteFile(path, icon.AutomuteLogo, 0644); err != nil {
		return err
	}

	tn.logger.Debugw("Created toast notification icon", "path", path)
	return nil
}

// LogNotifier only logs notifications. Used by one-shot CLI commands where
// a desktop toast would be noise.
type LogNotifier struct {
	logger *zap.SugaredLogger
}

// NewLogNotifier creates a new instance of LogNotifier.
func NewLogNotifier(logger *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

// Notify logs the notification at info level.
func (ln *LogNotifier) Notify(title, message string) {
	ln.logger.Infow(title, "message", message)
}
