package main

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/naman-kalwani/auctionit-server/configs"
	"github.com/naman-kalwani/auctionit-server/internal/auction"
	"github.com/naman-kalwani/auctionit-server/internal/auth"
	"github.com/naman-kalwani/auctionit-server/internal/database"
	"github.com/naman-kalwani/auctionit-server/internal/handlers/websocket"
	"github.com/naman-kalwani/auctionit-server/pkg/utils"
)

var (
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
	db database.Service
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Every(15*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model for the operator dashboard: a table of open auctions and a log view.
type model struct {
	table     table.Model
	viewport  viewport.Model
	logBuffer *bytes.Buffer
	logs      []string
	showTable bool
	quitting  bool
}

func (m model) Init() tea.Cmd {
	return tick()
}

func auctionRows() []table.Row {
	auctions, err := db.GetOpenAuctions(context.Background())
	if err != nil {
		log.Error("Error getting auctions: ", err)
		return nil
	}

	rows := make([]table.Row, 0, len(auctions))
	for _, a := range auctions {
		leader := "-"
		if a.HighestBidderID != nil {
			leader = *a.HighestBidderID
		}

		timeLeft := time.Until(a.EndAt)
		timeLeftStr := timeLeft.Round(time.Second).String()
		if timeLeft < 0 {
			timeLeftStr = "Ended"
		}

		rows = append(rows, table.Row{
			a.ID,
			a.Title,
			a.CurrentBid.String(),
			leader,
			timeLeftStr,
		})
	}
	return rows
}

func newDashboard() model {
	columns := []table.Column{
		{Title: "AUCTION ID", Width: 20},
		{Title: "TITLE", Width: 24},
		{Title: "CURRENT BID", Width: 14},
		{Title: "LEADER", Width: 20},
		{Title: "TIME LEFT", Width: 14},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(auctionRows()),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	vp := viewport.New(100, 15)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return model{table: t, showTable: true, viewport: vp}
}

func (m *model) refreshLogs() {
	m.logs = strings.Split(m.logBuffer.String(), "\n")
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)
	switch msg := msg.(type) {
	case tickMsg:
		if m.showTable {
			m.table.SetRows(auctionRows())
		} else {
			m.refreshLogs()
		}
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if !m.showTable {
				m.viewport.LineUp(1)
			}
		case "down":
			if !m.showTable {
				m.viewport.LineDown(1)
			}
		case "tab":
			m.showTable = !m.showTable
			if !m.showTable {
				m.refreshLogs()
			}
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	}

	if m.showTable {
		m.table, cmd = m.table.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.quitting {
		return "Bye!\n"
	}
	if m.showTable {
		return baseStyle.Render(m.table.View()) + "\n" + helpStyle.Render("• tab: switch modes • q: exit\n")
	}

	styledLogs := make([]string, len(m.logs))
	copy(styledLogs, m.logs)
	styledLogs = utils.ColorizeLogs(styledLogs)

	// only show last 15 lines of logs
	if len(styledLogs) > 15 {
		styledLogs = styledLogs[len(styledLogs)-15:]
	}

	m.viewport.SetContent(strings.Join(styledLogs, "\n"))
	return m.viewport.View() + "\n" + helpStyle.Render("• tab: switch modes • q: exit\n")
}

func main() {
	// Load configurations
	cfg, err := configs.LoadConfig()
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}

	port := cfg.Server.Port
	if port == "" {
		port = "8080" // Default port if not specified
	}

	// Setup logger
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "debug"
	}
	logLevel, err := log.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		log.Error("Invalid log level: ", err)
	}
	log.SetLevel(logLevel)

	// Redirect logs to buffer for the dashboard
	logBuffer := new(bytes.Buffer)
	log.SetOutput(logBuffer)

	// Initialize the store
	db = database.New(cfg)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	hub := websocket.NewHub()
	notifier := auction.NewNotifier(db, hub, clock)
	engine := auction.NewEngine(db, hub, notifier, clock)

	scheduler := auction.NewScheduler(db, hub, notifier, clock, auction.SchedulerConfig{
		ClosingInterval:   cfg.Scheduler.ClosingInterval,
		WarningInterval:   cfg.Scheduler.WarningInterval,
		WarningWindowFrom: cfg.Scheduler.WarningWindowFrom,
		WarningWindowTo:   cfg.Scheduler.WarningWindowTo,
	})
	scheduler.Run(ctx)

	verifier := auth.NewVerifier(cfg.Auth.SecretKey)
	handler := websocket.NewAuctionHandler(db, hub, engine, verifier, cfg.WebSocket.SendBufferSize)

	// Setup routes
	http.HandleFunc("/ws/auction", handler.HandleAuctions)
	http.HandleFunc("/hooks/auction-created", handler.HandleAuctionCreated)
	http.HandleFunc("/health", handler.HandleHealth)

	// Start server in a goroutine
	log.Infof("Server started on port %s", port)
	go func() {
		if err := http.ListenAndServe(":"+port, nil); err != nil {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	// Start the dashboard
	m := newDashboard()
	m.logBuffer = logBuffer
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running dashboard: %v", err)
	}
}
