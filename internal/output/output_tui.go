package output

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/httping/httping/internal/shared"
)

// TUIOutput is a live probe dashboard using Bubble Tea
type TUIOutput struct {
	mu       sync.RWMutex
	program  *tea.Program
	model    *tuiModel
	resultCh chan shared.Result
	quitCh   chan struct{}
	doneCh   chan struct{}
	summary  *shared.RunSummary
}

// resultMsg carries one probe result into the Bubble Tea event loop
type resultMsg shared.Result

// tickMsg is sent periodically to refresh the display
type tickMsg time.Time

// Recent results kept for the table view
const tuiMaxRows = 512

// tuiModel holds the Bubble Tea model state
type tuiModel struct {
	// Data
	mu        sync.RWMutex
	info      shared.OutputInfo
	startTime time.Time

	sent        uint
	ok          uint
	failed      uint
	statusCodes map[int]uint
	bytesIn     int64
	bytesOut    int64

	connect tuiAgg
	ttfb    tuiAgg
	total   tuiAgg

	rows []shared.Result

	// UI state
	width  int
	height int
	scroll int // rows back from the newest probe
	help   help.Model
	keys   keyMap

	// Channel for receiving results
	resultCh chan shared.Result
	quitCh   chan struct{}
}

// tuiAgg accumulates one timing phase for the live statistics pane
type tuiAgg struct {
	count      uint
	sum        int64
	sumSquares int64
	min        int64
	max        int64
	last       int64
}

func (a *tuiAgg) add(us int64) {
	a.count++
	a.last = us
	a.sum += us
	a.sumSquares += us * us
	if a.min == 0 || us < a.min {
		a.min = us
	}
	if us > a.max {
		a.max = us
	}
}

func (a *tuiAgg) avg() int64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / int64(a.count)
}

func (a *tuiAgg) stdDev() float64 {
	if a.count == 0 {
		return 0
	}
	mean := float64(a.sum) / float64(a.count)
	variance := float64(a.sumSquares)/float64(a.count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// keyMap defines keyboard shortcuts
type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
	Help key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Quit, k.Help},
	}
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	statsTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5A67D8")).
			Padding(0, 1)

	tableTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#10B981")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FBBF24"))

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	addrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#60A5FA"))

	statsGoodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#34D399"))

	statsWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FBBF24"))

	statsBadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

type cellAlignment int

const (
	alignLeft cellAlignment = iota
	alignRight
)

func formatCell(value string, width int, alignment cellAlignment) string {
	if alignment == alignRight {
		return fmt.Sprintf("%*s", width, value)
	}
	return fmt.Sprintf("%-*s", width, value)
}

func truncateToWidth(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(value) <= width {
		return value
	}
	return lipgloss.NewStyle().Width(width).Render(value)
}

// NewTUIOutput creates a new Bubble Tea TUI output
func NewTUIOutput(info shared.OutputInfo) *TUIOutput {
	resultCh := make(chan shared.Result, 100)
	quitCh := make(chan struct{})

	model := &tuiModel{
		info:        info,
		startTime:   time.Now(),
		statusCodes: make(map[int]uint),
		help:        help.New(),
		keys:        keys,
		resultCh:    resultCh,
		quitCh:      quitCh,
	}

	return &TUIOutput{
		model:    model,
		resultCh: resultCh,
		quitCh:   quitCh,
		doneCh:   make(chan struct{}),
	}
}

// Start initializes and starts the Bubble Tea program
func (t *TUIOutput) Start() {
	doneCh := make(chan struct{})
	t.doneCh = doneCh
	t.program = tea.NewProgram(
		t.model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		// Ensure cleanup happens even if there's a panic
		defer func() {
			close(doneCh)
			if r := recover(); r != nil {
				log.Errorf("TUI panic: %v", r)
				t.program.Kill()
			}
		}()

		if _, err := t.program.Run(); err != nil {
			log.Errorf("Error running TUI: %v", err)
		}
	}()
}

// QuitChan returns the channel that signals when the user quits the TUI
func (t *TUIOutput) QuitChan() <-chan struct{} {
	return t.quitCh
}

// Record implements the Output interface
func (t *TUIOutput) Record(result shared.Result) {
	select {
	case t.resultCh <- result:
	default:
		// Channel full, skip update
	}
}

// Summary implements the Output interface. The summary is held until Close
// so the classic statistics block lands on the restored terminal.
func (t *TUIOutput) Summary(summary shared.RunSummary) {
	t.mu.Lock()
	t.summary = &summary
	t.mu.Unlock()
}

// Close implements the Output interface
func (t *TUIOutput) Close() error {
	t.mu.Lock()
	program := t.program
	doneCh := t.doneCh
	quitCh := t.quitCh
	t.mu.Unlock()

	if program != nil {
		// Request graceful shutdown
		program.Quit()

		if doneCh != nil {
			select {
			case <-doneCh:
				// Clean exit
			case <-time.After(500 * time.Millisecond):
				// Force cleanup if it takes too long
				program.Kill()
				<-doneCh
			}
		}
	}

	if quitCh != nil {
		select {
		case <-quitCh:
			// Already closed
		default:
			close(quitCh)
		}
	}

	t.mu.Lock()
	t.program = nil
	t.doneCh = nil
	summary := t.summary
	t.mu.Unlock()

	if summary != nil {
		writeSummary(os.Stdout, *summary, TextOptions{})
	}
	return nil
}

// Init is the initial I/O for Bubble Tea
func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		waitForResult(m.resultCh),
	)
}

// Update handles messages and updates the model
func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			// Signal quit to the main program
			select {
			case m.quitCh <- struct{}{}:
			default:
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Up):
			m.scrollRows(1)
		case key.Matches(msg, m.keys.Down):
			m.scrollRows(-1)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case resultMsg:
		m.ingest(shared.Result(msg))
		return m, waitForResult(m.resultCh)

	case tickMsg:
		return m, tickCmd()
	}

	return m, nil
}

func (m *tuiModel) scrollRows(delta int) {
	next := m.scroll + delta
	next = max(next, 0)
	m.scroll = next
}

// ingest folds one result into the running tallies and the recent table
func (m *tuiModel) ingest(r shared.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent++
	if r.OK {
		m.ok++
		// Reused connections skip the connect phase
		if r.ConnectUS > 0 {
			m.connect.add(r.ConnectUS)
		}
		m.ttfb.add(r.TTFBUS)
		m.total.add(r.TotalUS)
	} else {
		m.failed++
	}
	if r.StatusCode != 0 {
		m.statusCodes[r.StatusCode]++
	}
	m.bytesIn += r.HeaderBytes + r.BodyBytes
	m.bytesOut += r.BytesOut

	m.rows = append(m.rows, r)
	if len(m.rows) > tuiMaxRows {
		m.rows = m.rows[len(m.rows)-tuiMaxRows:]
	}
}

// View renders the UI
func (m *tuiModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var b strings.Builder

	// Title bar
	elapsed := time.Since(m.startTime)
	keepAlive := ""
	if m.info.KeepAlive {
		keepAlive = " | keep-alive"
	}
	title := fmt.Sprintf(" HTTPING %s %s | Interval: %s%s | Elapsed: %s ",
		m.info.Method, m.info.URL, m.info.Interval, keepAlive, elapsed.Round(time.Second))
	b.WriteString(titleStyle.Width(m.width).Render(title))
	b.WriteString("\n")

	// Calculate available height for content
	helpHeight := lipgloss.Height(m.help.View(m.keys))
	contentHeight := m.height - 3 - helpHeight // title + spacing + help

	// Stats pane on top, recent probe table below
	stats := m.renderStats()
	b.WriteString(stats)
	b.WriteString("\n")

	tableHeight := contentHeight - lipgloss.Height(stats)
	b.WriteString(m.renderRecent(tableHeight))

	// Help
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderStats renders the aggregate statistics pane
func (m *tuiModel) renderStats() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder

	title := statsTitleStyle.Render(fmt.Sprintf(" Statistics (%d sent, %d ok, %d failed) ",
		m.sent, m.ok, m.failed))
	b.WriteString(title)
	b.WriteString("\n\n")

	contentWidth := m.width - 4
	contentWidth = max(contentWidth, 0)

	header := fmt.Sprintf("%-12s %8s %8s %8s %8s %8s",
		"Phase", "Last", "Avg", "Min", "Max", "StdDev")
	b.WriteString(headerStyle.Render(truncateToWidth(header, contentWidth)))
	b.WriteString("\n")

	phases := []struct {
		name string
		agg  *tuiAgg
	}{
		{"connect", &m.connect},
		{"first byte", &m.ttfb},
		{"total", &m.total},
	}
	for _, p := range phases {
		cells := []string{
			formatCell(p.name, 12, alignLeft),
			formatCell(fmt.Sprintf("%.2f", float64(p.agg.last)/1000.0), 8, alignRight),
			formatCell(fmt.Sprintf("%.2f", float64(p.agg.avg())/1000.0), 8, alignRight),
			formatCell(fmt.Sprintf("%.2f", float64(p.agg.min)/1000.0), 8, alignRight),
			formatCell(fmt.Sprintf("%.2f", float64(p.agg.max)/1000.0), 8, alignRight),
			formatCell(fmt.Sprintf("%.2f", p.agg.stdDev()/1000.0), 8, alignRight),
		}
		line := truncateToWidth(strings.Join(cells, " "), contentWidth)
		b.WriteString(rowStyle.Render(line))
		b.WriteString("\n")
	}

	lossPct := 0.0
	if m.sent > 0 {
		lossPct = float64(m.failed) / float64(m.sent) * 100
	}
	lossStyle := statsGoodStyle
	if lossPct > 10 {
		lossStyle = statsWarningStyle
	}
	if lossPct > 25 {
		lossStyle = statsBadStyle
	}

	b.WriteString("\n")
	b.WriteString(rowStyle.Render("loss: "))
	b.WriteString(lossStyle.Render(fmt.Sprintf("%.2f%%", lossPct)))
	if len(m.statusCodes) > 0 {
		b.WriteString(rowStyle.Render("   codes: " + statusCodeLine(m.statusCodes)))
	}
	b.WriteString(rowStyle.Render(fmt.Sprintf("   in: %s   out: %s",
		humanize.Bytes(uint64(m.bytesIn)), humanize.Bytes(uint64(m.bytesOut)))))

	return borderStyle.Width(m.width - 2).Render(b.String())
}

// renderRecent renders the table of recent probes, newest at the bottom
func (m *tuiModel) renderRecent(maxHeight int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder

	title := tableTitleStyle.Render(fmt.Sprintf(" Recent probes (%d kept) ", len(m.rows)))
	b.WriteString(title)
	b.WriteString("\n\n")

	contentWidth := m.width - 4
	contentWidth = max(contentWidth, 20)

	fixedColumns := 50
	hostWidth := contentWidth - fixedColumns
	hostWidth = max(hostWidth, 10)

	headerFmt := fmt.Sprintf("%%5s %%-8s %%4s %%8s %%8s %%8s %%-2s %%-%ds", hostWidth)
	header := fmt.Sprintf(headerFmt,
		"Seq", "Time", "Code", "Conn", "TTFB", "Total", "", "Address")
	b.WriteString(headerStyle.Render(truncateToWidth(header, contentWidth)))
	b.WriteString("\n")

	visibleLines := maxHeight - 4
	visibleLines = max(visibleLines, 1)

	maxScroll := 0
	if len(m.rows) > visibleLines {
		maxScroll = len(m.rows) - visibleLines
	}
	m.scroll = min(m.scroll, maxScroll)

	end := len(m.rows) - m.scroll
	start := end - visibleLines
	start = max(start, 0)

	for _, r := range m.rows[start:end] {
		code := "-"
		if r.StatusCode != 0 {
			code = fmt.Sprintf("%d", r.StatusCode)
		}
		codeStyle := statsGoodStyle
		if !r.OK {
			codeStyle = statsBadStyle
		}

		flags := ""
		if r.Reused {
			flags = "R"
		}
		if r.Reconnected {
			flags = "C"
		}

		host := r.Addr
		if !r.OK && r.Error != "" {
			host = r.Error
		}
		if len(host) > hostWidth {
			host = host[:hostWidth-3] + "..."
		}

		cells := []string{
			formatCell(fmt.Sprintf("%d", r.Seq), 5, alignRight),
			formatCell(r.Timestamp.Format("15:04:05"), 8, alignLeft),
			formatCell(code, 4, alignRight),
			formatCell(msCell(r.ConnectUS), 8, alignRight),
			formatCell(msCell(r.TTFBUS), 8, alignRight),
			formatCell(msCell(r.TotalUS), 8, alignRight),
			formatCell(flags, 2, alignLeft),
			formatCell(host, hostWidth, alignLeft),
		}

		cells[2] = codeStyle.Render(cells[2])
		if r.OK {
			cells[7] = addrStyle.Render(cells[7])
		} else {
			cells[7] = statsBadStyle.Render(cells[7])
		}

		line := truncateToWidth(strings.Join(cells, " "), contentWidth)
		b.WriteString(rowStyle.Render(line))
		b.WriteString("\n")
	}

	return borderStyle.Width(m.width - 2).Render(b.String())
}

// msCell formats a microsecond value for a table cell, "-" when unset
func msCell(us int64) string {
	if us <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", float64(us)/1000.0)
}

// waitForResult waits for the next probe result
func waitForResult(resultCh chan shared.Result) tea.Cmd {
	return func() tea.Msg {
		return resultMsg(<-resultCh)
	}
}

// tickCmd returns a command that sends a tick message periodically
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
