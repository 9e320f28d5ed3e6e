// Package ui holds small bubbletea components shared by terminal views.
package ui

import (
	"strings"
	"time"

	"github.com/cadence-media/cadence/style"
	tea "github.com/charmbracelet/bubbletea"
)

// NotificationLifetime is how long a notification stays visible.
const NotificationLifetime = 3 * time.Second

// Model shows a transient notification next to the last line of a view.
type Model struct {
	notification string
	notifiedAt   time.Time
}

// NotificationMsg sets the notification text.
type NotificationMsg string

// ClearNotificationMsg clears the notification if it is older than NotificationLifetime.
type ClearNotificationMsg struct{}

// Notify returns a command showing msg.
func Notify(msg string) tea.Cmd {
	return func() tea.Msg {
		return NotificationMsg(msg)
	}
}

// ClearNotification returns a delayed command clearing the notification.
func ClearNotification() tea.Cmd {
	return tea.Tick(NotificationLifetime, func(time.Time) tea.Msg {
		return ClearNotificationMsg{}
	})
}

// Update handles notification messages.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case NotificationMsg:
		m.notification = string(msg)
		m.notifiedAt = time.Now()
		return ClearNotification()
	case ClearNotificationMsg:
		if time.Since(m.notifiedAt) >= NotificationLifetime {
			m.notification = ""
		}
	}
	return nil
}

// Notification returns the visible notification, if any.
func (m *Model) Notification() string {
	return m.notification
}

// View appends the notification to the last line of content.
func (m *Model) View(content string) string {
	if m.notification == "" {
		return content
	}

	lines := strings.Split(content, "\n")
	lines[len(lines)-1] += "  " + style.Faint(m.notification)
	return strings.Join(lines, "\n")
}
