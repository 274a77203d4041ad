package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=fbcleanup", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleQuote(message), appleQuote(title))
	return exec.Command("osascript", "-e", script).Run()
}

func appleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("fbcleanup").Show($toast)
	`, xmlEscape(title), xmlEscape(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

// Notifier prints run milestones to the console and, when enabled, raises
// a desktop notification for them.
type Notifier struct {
	sender  NotificationSender
	out     io.Writer
	enabled bool
}

// NewNotifier creates a Notifier for the current platform. With enabled
// false it only prints.
func NewNotifier(enabled bool) *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return &Notifier{sender: sender, out: out, enabled: enabled}
}

// NewNotifierWithSender wires an explicit sender and console writer
func NewNotifierWithSender(sender NotificationSender, w io.Writer) *Notifier {
	return &Notifier{sender: sender, out: w, enabled: sender != nil}
}

func (n *Notifier) send(title, message string) {
	if n.enabled && n.sender != nil {
		// Notifications are best effort
		_ = n.sender.Send(title, message)
	}
}

// SendNotification sends a desktop notification and prints to console
func (n *Notifier) SendNotification(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Cyan(title), Yellow(message))
	n.send(title, message)
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}

// NotifyBlock reports a detected block and when the run may resume
func (n *Notifier) NotifyBlock(count int, resumeAt time.Time) {
	msg := fmt.Sprintf("Block #%d detected. Progress saved; resume after %s.", count, resumeAt.Local().Format("Jan 2 15:04"))
	n.SendError("Facebook block detected", msg)
}

// NotifyComplete reports the end of a run
func (n *Notifier) NotifyComplete(deleted, failed int, elapsed time.Duration) {
	msg := fmt.Sprintf("Deleted %d items (%d failed) in %s", deleted, failed, FormatDuration(elapsed))
	n.SendSuccess("Cleanup complete", msg)
}
