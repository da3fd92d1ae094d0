// BeKord gateway TUI client.
//
// A debugging companion for the gateway: it connects as a given user, prints
// every event the server pushes (presence, typing, subscription acks), and
// drives the control protocol through slash commands.
//
// Concurrency
// -----------
//   A single goroutine reads JSON frames from the WebSocket and forwards raw
//   bytes to the pkts channel. The Bubbletea event loop consumes one frame
//   at a time via waitForPkt (a tea.Cmd), immediately queuing the next read
//   after each frame is processed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("82")
	red    = lipgloss.Color("196")
	yellow = lipgloss.Color("220")
	gray   = lipgloss.Color("241")
	white  = lipgloss.Color("255")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(purple).
			Foreground(white).
			Padding(0, 1)

	footerBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(gray).
				Padding(0, 1)

	onlineStyle  = lipgloss.NewStyle().Foreground(green)
	offlineStyle = lipgloss.NewStyle().Foreground(red)
	typingStyle  = lipgloss.NewStyle().Foreground(yellow)
	systemStyle  = lipgloss.NewStyle().Foreground(gray)
)

// ---------------------------------------------------------------------------
// Tea messages
// ---------------------------------------------------------------------------

type serverPktMsg []byte      // a raw frame arrived from the server
type disconnectedMsg struct{} // server closed the connection

// event mirrors the gateway's outbound frame shape; only the fields needed
// for display are decoded.
type event struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Target    string `json:"target"`
	ServerID  int64  `json:"server_id"`
	DMID      int64  `json:"dm_id"`
	Channel   string `json:"channel"`
	Timestamp int64  `json:"timestamp"`
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

type model struct {
	conn *websocket.Conn
	pkts chan []byte // goroutine → bubbletea bridge
	me   string

	ready    bool
	viewport viewport.Model
	input    textinput.Model
	lines    []string

	width, height int
}

func newModel(conn *websocket.Conn, pkts chan []byte, me string) model {
	in := textinput.New()
	in.Placeholder = "/sub <id>  /dm <id>  /unsub <id>  /typing <id> <channel>  /ping  /quit"
	in.CharLimit = 200
	in.Focus()

	return model{
		conn:  conn,
		pkts:  pkts,
		me:    me,
		input: in,
		lines: []string{systemStyle.Render("type /help for commands")},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForPkt(m.pkts))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.vpHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.vpHeight()
		}
		m.input.Width = msg.Width - 4
		m.refresh()
		return m, nil

	case serverPktMsg:
		m.addLine(renderEvent([]byte(msg)))
		return m, waitForPkt(m.pkts)

	case disconnectedMsg:
		m.addLine(offlineStyle.Render("disconnected from gateway"))
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line != "" {
				m = m.runCommand(line)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) vpHeight() int {
	// header (1) + footer border (1) + footer input (1) = 3 lines reserved
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	return h
}

func (m *model) addLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func (m model) runCommand(line string) model {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/help":
		m.addLine(systemStyle.Render("/sub <server_id>   subscribe to a server topic"))
		m.addLine(systemStyle.Render("/dm <dm_id>        subscribe to a DM thread"))
		m.addLine(systemStyle.Render("/unsub <server_id> unsubscribe from a server topic"))
		m.addLine(systemStyle.Render("/typing <server_id> <channel> | /typing dm <dm_id>"))
		m.addLine(systemStyle.Render("/ping              round-trip check"))
		m.addLine(systemStyle.Render("/quit              close the connection"))

	case "/ping":
		m.send(map[string]any{"type": "ping"})

	case "/sub":
		if id, ok := argID(fields, 1); ok {
			m.send(map[string]any{"type": "subscribe_server", "server_id": id})
		}

	case "/dm":
		if id, ok := argID(fields, 1); ok {
			m.send(map[string]any{"type": "subscribe_dm", "dm_id": id})
		}

	case "/unsub":
		if id, ok := argID(fields, 1); ok {
			m.send(map[string]any{"type": "unsubscribe_server", "server_id": id})
		}

	case "/typing":
		if len(fields) == 3 && fields[1] == "dm" {
			if id, ok := argID(fields, 2); ok {
				m.send(map[string]any{"type": "typing", "dm_id": id})
			}
		} else if id, ok := argID(fields, 1); ok && len(fields) == 3 {
			m.send(map[string]any{"type": "typing", "server_id": id, "channel": fields[2]})
		}

	case "/quit":
		m.conn.Close()

	default:
		m.addLine(systemStyle.Render("unknown command, /help for the list"))
	}
	return m
}

func argID(fields []string, i int) (int64, bool) {
	if len(fields) <= i {
		return 0, false
	}
	id, err := strconv.ParseInt(fields[i], 10, 64)
	return id, err == nil
}

func (m *model) send(payload map[string]any) {
	if err := m.conn.WriteJSON(payload); err != nil {
		m.addLine(offlineStyle.Render("send failed: " + err.Error()))
	}
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func renderEvent(raw []byte) string {
	var ev event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return systemStyle.Render(string(raw))
	}

	stamp := ""
	if ev.Timestamp > 0 {
		stamp = time.Unix(ev.Timestamp, 0).Format("15:04:05") + " "
	}

	switch ev.Type {
	case "connected":
		return onlineStyle.Render("connected as " + ev.Username)
	case "user_online":
		return stamp + onlineStyle.Render("● "+ev.Username+" is online")
	case "user_offline":
		return stamp + offlineStyle.Render("○ "+ev.Username+" went offline")
	case "pong":
		return stamp + systemStyle.Render("pong")
	case "subscribed":
		id := ev.ServerID
		if ev.Target == "dm" {
			id = ev.DMID
		}
		return systemStyle.Render(fmt.Sprintf("subscribed to %s %d", ev.Target, id))
	case "typing":
		where := fmt.Sprintf("server %d #%s", ev.ServerID, ev.Channel)
		if ev.DMID > 0 {
			where = fmt.Sprintf("dm %d", ev.DMID)
		}
		return typingStyle.Render(fmt.Sprintf("%s is typing in %s…", ev.Username, where))
	default:
		return string(raw)
	}
}

func (m model) View() string {
	if !m.ready {
		return "connecting…"
	}
	header := headerStyle.Render("bekord gateway — " + m.me)
	footer := footerBorderStyle.Width(m.width).Render(m.input.View())
	return header + "\n" + m.viewport.View() + "\n" + footer
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

func waitForPkt(ch <-chan []byte) tea.Cmd {
	return func() tea.Msg {
		data, ok := <-ch
		if !ok {
			return disconnectedMsg{}
		}
		return serverPktMsg(data)
	}
}

func main() {
	addr := flag.String("addr", "localhost:8080", "gateway address")
	user := flag.String("user", "", "username to connect as")
	header := flag.String("identity-header", "X-Bekord-User", "identity header the gateway trusts")
	origin := flag.String("origin", "http://localhost:8080", "Origin header to present")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "missing -user")
		os.Exit(1)
	}

	wsURL := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	headers := http.Header{}
	headers.Set(*header, *user)
	headers.Set("Origin", *origin)

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(wsURL.String(), headers)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	// pkts bridges the WebSocket reader goroutine and the Bubbletea loop.
	pkts := make(chan []byte, 64)
	go func() {
		defer close(pkts)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			pkts <- data
		}
	}()

	p := tea.NewProgram(
		newModel(conn, pkts, *user),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
