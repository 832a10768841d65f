package main

import (
	"context"
	"fmt"
	"strings"
	"tungo/domain/relay"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type eventMsg relay.EventOrError

type streamClosedMsg struct{}

// dashboard renders the live event stream produced by the relay client's
// event loop, in the style of presentation/bubble_tea's thin wrappers
// around bubbles components.
type dashboard struct {
	events <-chan relay.EventOrError
	cancel context.CancelFunc

	vp     viewport.Model
	lines  []string
	status string
}

func newDashboard(events <-chan relay.EventOrError, cancel context.CancelFunc) *dashboard {
	vp := viewport.New(96, 24)
	return &dashboard{
		events: events,
		cancel: cancel,
		vp:     vp,
		status: "connecting",
	}
}

func (d *dashboard) Init() tea.Cmd {
	return d.waitForEvent()
}

// waitForEvent blocks on the event channel off the bubbletea goroutine and
// reports back as a tea.Msg; Update re-issues it after every event so the
// loop keeps listening.
func (d *dashboard) waitForEvent() tea.Cmd {
	events := d.events
	return func() tea.Msg {
		item, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(item)
	}
}

func (d *dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			d.cancel()
			return d, tea.Quit
		}
	case eventMsg:
		d.append(relay.EventOrError(msg))
		return d, d.waitForEvent()
	case streamClosedMsg:
		d.status = "disconnected"
		return d, tea.Quit
	}
	var cmd tea.Cmd
	d.vp, cmd = d.vp.Update(msg)
	return d, cmd
}

func (d *dashboard) append(item relay.EventOrError) {
	if item.Err != nil {
		d.lines = append(d.lines, "error: "+item.Err.Error())
	} else {
		d.lines = append(d.lines, describeEvent(item.Event))
		if item.Event.Kind == relay.EventServerConnected {
			d.status = "connected"
		}
	}
	d.vp.SetContent(strings.Join(d.lines, "\n"))
	d.vp.GotoBottom()
}

func describeEvent(ev relay.Event) string {
	switch ev.Kind {
	case relay.EventServerConnected:
		return fmt.Sprintf("server connected: %x", ev.ServerKey)
	case relay.EventPeerConnected:
		return fmt.Sprintf("peer connected: %x", ev.PeerKey)
	case relay.EventBinaryMessage:
		return fmt.Sprintf("binary message from %x (%d bytes)", ev.PeerKey, len(ev.BinaryMessage))
	case relay.EventJsonMessage:
		return fmt.Sprintf("json message from %x: %s", ev.PeerKey, string(ev.JsonMessage.Contents))
	case relay.EventSessionCreated:
		return fmt.Sprintf("session created: %s", ev.SessionResult.Id.String())
	case relay.EventSessionReady:
		return fmt.Sprintf("session ready: %s", ev.SessionResult.Id.String())
	case relay.EventSessionActive:
		return fmt.Sprintf("session active: %s", ev.SessionResult.Id.String())
	case relay.EventSessionFinished:
		return fmt.Sprintf("session finished: %s", ev.Session.String())
	default:
		return ev.Kind.String()
	}
}

func (d *dashboard) View() string {
	return fmt.Sprintf("relay-client [%s]\n\n%s\n\npress q to quit\n", d.status, d.vp.View())
}
