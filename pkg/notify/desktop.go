package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/session"
)

// Sender shows a desktop notification
type Sender interface {
	Send(ctx context.Context, title, message string) error
}

// LinuxSender uses notify-send
type LinuxSender struct{}

func (LinuxSender) Send(ctx context.Context, title, message string) error {
	return exec.CommandContext(ctx, "notify-send", title, message).Run()
}

// MacOSSender uses osascript
type MacOSSender struct{}

func (MacOSSender) Send(ctx context.Context, title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.CommandContext(ctx, "osascript", "-e", script).Run()
}

// WindowsSender uses a PowerShell toast
type WindowsSender struct{}

func (WindowsSender) Send(ctx context.Context, title, message string) error {
	escape := func(s string) string { return strings.ReplaceAll(s, "'", "''") }
	script := fmt.Sprintf(`
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
$text = $template.GetElementsByTagName('text')
$text.Item(0).AppendChild($template.CreateTextNode('%s')) | Out-Null
$text.Item(1).AppendChild($template.CreateTextNode('%s')) | Out-Null
$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('twpipeline').Show($toast)
`, escape(title), escape(message))
	return exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Desktop shows summaries through the platform's notification center
type Desktop struct {
	sender Sender
	logger logger.Logger
}

// NewDesktop picks the sender for the current platform; unsupported
// platforms only log
func NewDesktop(log logger.Logger) *Desktop {
	var sender Sender
	switch runtime.GOOS {
	case "linux":
		sender = LinuxSender{}
	case "darwin":
		sender = MacOSSender{}
	case "windows":
		sender = WindowsSender{}
	}
	return NewDesktopWithSender(sender, log)
}

func NewDesktopWithSender(sender Sender, log logger.Logger) *Desktop {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Desktop{sender: sender, logger: log.WithField("notifier", "desktop")}
}

// Notify never fails the run: a missing notification daemon is only logged
func (d *Desktop) Notify(ctx context.Context, s session.Summary) error {
	if d.sender == nil {
		d.logger.Debug("Desktop notifications unsupported on this platform")
		return nil
	}
	if err := d.sender.Send(ctx, Title(s), Body(s)); err != nil {
		d.logger.WithError(err).Warn("Desktop notification failed")
	}
	return nil
}

func (d *Desktop) Close() error { return nil }
