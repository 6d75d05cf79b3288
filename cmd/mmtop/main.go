package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	gorillaWS "github.com/gorilla/websocket"
)

// mmtop：做市平台的终端状态面板
// 订阅 server 的 /api/v1/ws/status，实时展示每个交易对 worker 的运行状态

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	aliveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")) // 绿色

	deadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // 红色

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// workerStatus 与 supervisor.WorkerStatus 的线上形状一致
type workerStatus struct {
	Pair       string    `json:"pair"`
	PID        int       `json:"pid"`
	Alive      bool      `json:"alive"`
	ConfigHash string    `json:"config_hash"`
	StartedAt  time.Time `json:"started_at"`
}

type statusFrame struct {
	Timestamp int64          `json:"timestamp"`
	Workers   []workerStatus `json:"workers"`
}

type frameMsg statusFrame
type errMsg error

type model struct {
	url     string
	conn    *gorillaWS.Conn
	frame   statusFrame
	lastErr error
}

func (m model) Init() tea.Cmd {
	return m.readFrame
}

// readFrame 阻塞读一帧 ws 消息，交给 bubbletea 事件循环
func (m model) readFrame() tea.Msg {
	if m.conn == nil {
		return errMsg(fmt.Errorf("未连接"))
	}
	var frame statusFrame
	if err := m.conn.ReadJSON(&frame); err != nil {
		return errMsg(err)
	}
	return frameMsg(frame)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case frameMsg:
		m.frame = statusFrame(msg)
		m.lastErr = nil
		return m, m.readFrame
	case errMsg:
		m.lastErr = msg
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	s := headerStyle.Render(" mmtop · market maker workers ") + "\n\n"

	workers := m.frame.Workers
	sort.Slice(workers, func(i, j int) bool { return workers[i].Pair < workers[j].Pair })

	if len(workers) == 0 {
		s += dimStyle.Render("（没有运行中的 worker）") + "\n"
	}
	rows := ""
	for _, w := range workers {
		state := deadStyle.Render("DEAD ")
		if w.Alive {
			state = aliveStyle.Render("ALIVE")
		}
		uptime := time.Since(w.StartedAt).Truncate(time.Second)
		rows += fmt.Sprintf("%-12s %s pid=%-7d up=%-10s cfg=%s\n",
			w.Pair, state, w.PID, uptime, dimStyle.Render(shortHash(w.ConfigHash)))
	}
	if rows != "" {
		s += borderStyle.Render(rows) + "\n"
	}

	if m.frame.Timestamp > 0 {
		s += dimStyle.Render(fmt.Sprintf("更新于 %s", time.Unix(m.frame.Timestamp, 0).Format("15:04:05"))) + "\n"
	}
	s += dimStyle.Render("按 q 退出") + "\n"
	return s
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func main() {
	server := flag.String("server", "ws://127.0.0.1:8090", "server 地址（ws:// 前缀）")
	flag.Parse()

	url := *server + "/api/v1/ws/status"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := gorillaWS.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "连接 %s 失败: %v\n", url, err)
		os.Exit(1)
	}
	defer conn.Close()

	p := tea.NewProgram(model{url: url, conn: conn})
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI 退出: %v\n", err)
		os.Exit(1)
	}
}
