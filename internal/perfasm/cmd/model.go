package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/textinput"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"perfasm/internal/disasm"
	"perfasm/internal/export"
	"perfasm/internal/perfasm/styles"
	"perfasm/internal/profile"
	"perfasm/internal/ui/colorize"
)

type viewMode int

const (
	viewSymbols viewMode = iota
	viewAsm
	viewInfo
)

type symbolItem struct {
	sym        disasm.Symbol
	share      float64 // percent of the first event
	filterTerm string
}

func (i symbolItem) FilterValue() string {
	return i.filterTerm
}

// Custom item delegate for symbols list
type itemDelegate struct {
	theme styles.Theme
}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(symbolItem)
	if !ok {
		return
	}

	indicator := " "
	nameStyle := lipgloss.NewStyle()
	if index == m.Index() {
		indicator = ">"
		nameStyle = nameStyle.Foreground(lipgloss.Color("170"))
	}
	if styles.NoColor() && index == m.Index() {
		nameStyle = lipgloss.NewStyle().Bold(true)
	}

	share := d.theme.Cost(i.share).Render(fmt.Sprintf("%6.2f%%", i.share))
	fmt.Fprintf(w, " %s %s  %s  %s",
		indicator,
		share,
		nameStyle.Render(i.sym.Name),
		d.theme.Address.Render(i.sym.Binary))
}

// viewGeneratedMsg carries a finished generation back to the update loop.
type viewGeneratedMsg struct {
	result disasm.JobResult
}

type copiedMsg struct {
	lines int
	err   error
}

type exportedMsg struct {
	path string
	err  error
}

type model struct {
	ctx     context.Context
	session *session
	viewer  *disasm.Viewer
	painter colorize.Painter

	symbolsList list.Model
	info        viewport.Model
	spinner     spinner.Model
	search      textinput.Model
	searching   bool

	mode    viewMode
	cursor  int
	offset  int
	pending uint64 // sequence of the generation in flight
	loading bool
	status  string

	width  int
	height int
}

func newModel(ctx context.Context, s *session) model {
	theme := styles.CurrentTheme()

	symbolsList := list.New(symbolItems(s.profile), itemDelegate{theme: theme}, 80, 22)
	symbolsList.SetShowStatusBar(false)
	symbolsList.SetFilteringEnabled(true)
	symbolsList.Title = fmt.Sprintf("Symbols (%d total)", len(s.viewer.Result().Symbols))
	symbolsList.Styles.Title = theme.Title
	symbolsList.SetShowHelp(true)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "search"

	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(22)

	m := model{
		ctx:         ctx,
		session:     s,
		viewer:      s.viewer,
		painter:     colorize.NewPainter(s.viewer.Arch(), s.viewer.Options().IntelSyntax),
		symbolsList: symbolsList,
		info:        vp,
		spinner:     sp,
		search:      ti,
		mode:        viewSymbols,
		width:       80,
		height:      24,
	}
	m.updateInfo()
	return m
}

func symbolItems(p *profile.Profile) []list.Item {
	res := p.Result
	items := make([]list.Item, 0, len(res.Symbols))
	for _, sym := range res.Symbols {
		var share float64
		if len(p.Totals) > 0 && p.Totals[0] > 0 {
			share = res.Entry(sym).Total[0] / p.Totals[0] * 100
		}
		items = append(items, symbolItem{
			sym:        sym,
			share:      share,
			filterTerm: sym.Name + " " + sym.Binary,
		})
	}
	return items
}

func (m model) Init() tea.Cmd {
	return nil
}

func generateCmd(ctx context.Context, job disasm.Job, r disasm.Runner) tea.Cmd {
	return func() tea.Msg {
		return viewGeneratedMsg{result: job.Run(ctx, r)}
	}
}

// regenerate starts a generation of the current view. Results of earlier
// generations still in flight are dropped when they arrive.
func (m *model) regenerate() tea.Cmd {
	job := m.viewer.Plan()
	m.pending = job.Seq
	m.loading = true
	m.status = ""
	return tea.Batch(generateCmd(m.ctx, job, m.viewer.Runner()), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case viewGeneratedMsg:
		m.applyGenerated(msg.result)
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("copied %d rows", msg.lines)
		}
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("export failed: %v", msg.err)
		} else {
			m.status = "exported " + msg.path
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.symbolsList.SetWidth(msg.Width)
			m.symbolsList.SetHeight(msg.Height - 2)
			m.info.SetWidth(msg.Width)
			m.info.SetHeight(msg.Height - 2)
			m.ensureVisible()
			m.updateInfo()
		}

	case tea.KeyMsg:
		key := msg.String()
		if m.searching {
			return m.handleSearchKey(key, msg)
		}
		// While the list filters, keys belong to the filter input.
		if m.mode == viewSymbols && m.symbolsList.FilterState() == list.Filtering {
			if key == "ctrl+c" {
				return m.quit()
			}
			break
		}
		switch key {
		case "q", "ctrl+c":
			return m.quit()
		case "tab":
			m.cycle(1)
			return m, nil
		case "shift+tab":
			m.cycle(-1)
			return m, nil
		}
		switch m.mode {
		case viewSymbols:
			if key == "enter" {
				if item, ok := m.symbolsList.SelectedItem().(symbolItem); ok {
					return m.selectSymbol(item.sym)
				}
				return m, nil
			}
		case viewAsm:
			return m.handleAsmKey(key)
		}
	}

	switch m.mode {
	case viewSymbols:
		m.symbolsList, cmd = m.symbolsList.Update(msg)
	case viewInfo:
		m.info, cmd = m.info.Update(msg)
	}
	return m, cmd
}

// quit leaves cleanup to the command that opened the session.
func (m model) quit() (tea.Model, tea.Cmd) {
	return m, tea.Quit
}

func (m *model) cycle(step int) {
	modes := []viewMode{viewSymbols, viewAsm, viewInfo}
	next := (int(m.mode) + step + len(modes)) % len(modes)
	if modes[next] == viewAsm && !m.viewer.Current().Valid() {
		next = (next + step + len(modes)) % len(modes)
	}
	m.mode = modes[next]
	if m.mode == viewInfo {
		m.updateInfo()
	}
}

func (m model) selectSymbol(sym disasm.Symbol) (tea.Model, tea.Cmd) {
	m.viewer.Select(sym)
	m.mode = viewAsm
	m.cursor, m.offset = 0, 0
	cmd := m.regenerate()
	return m, cmd
}

func (m *model) applyGenerated(r disasm.JobResult) {
	current := r.Seq == m.pending
	if current {
		m.loading = false
	}
	if !m.viewer.Apply(r) {
		if current && r.Err != nil {
			m.status = fmt.Sprintf("generation failed: %v", r.Err)
		}
		return
	}
	view := m.viewer.View()
	m.cursor = view.Focus
	m.offset = 0
	m.clampCursor()
	m.ensureVisible()
}

// handleAsmKey is the assembly view's key map.
func (m model) handleAsmKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "pgup":
		m.moveCursor(-m.bodyHeight())
	case "pgdown", " ":
		m.moveCursor(m.bodyHeight())
	case "home", "g":
		m.moveCursor(-len(m.rows()))
	case "end", "G":
		m.moveCursor(len(m.rows()))
	case "enter":
		return m.activate()
	case "backspace", "left":
		if !m.viewer.ReturnToCaller() {
			m.status = "no caller to return to"
			return m, nil
		}
		cmd := m.regenerate()
		return m, cmd
	case "esc":
		m.mode = viewSymbols
	case "/":
		m.searching = true
		m.search.SetValue(m.viewer.Search().Text)
		cmd := m.search.Focus()
		return m, cmd
	case "n":
		m.nextMatch(1)
	case "N":
		m.nextMatch(-1)
	case "a":
		if m.viewer.Action() == disasm.ActionAnnotate {
			m.viewer.SetAction(disasm.ActionDisassembly)
		} else {
			m.viewer.SetAction(disasm.ActionAnnotate)
		}
		cmd := m.regenerate()
		return m, cmd
	case "i":
		opts := m.viewer.Options()
		opts.IntelSyntax = !opts.IntelSyntax
		m.painter.Intel = opts.IntelSyntax
		m.viewer.SetOptions(opts)
		cmd := m.regenerate()
		return m, cmd
	case "r":
		opts := m.viewer.Options()
		opts.NoShowRawInsn = !opts.NoShowRawInsn
		m.viewer.SetOptions(opts)
		cmd := m.regenerate()
		return m, cmd
	case "h":
		opts := m.viewer.Options()
		opts.NoShowAddress = !opts.NoShowAddress
		m.viewer.SetOptions(opts)
		cmd := m.regenerate()
		return m, cmd
	case "m":
		if m.viewer.Approach() == disasm.ApproachAddress {
			m.viewer.SetApproach(disasm.ApproachSymbol)
		} else {
			m.viewer.SetApproach(disasm.ApproachAddress)
		}
		cmd := m.regenerate()
		return m, cmd
	case "y":
		return m, copyCmd(m.viewer.View())
	case "e":
		return m, exportCmd(m.viewer.View())
	}
	return m, nil
}

func (m model) activate() (tea.Model, tea.Cmd) {
	t := m.viewer.Activate(m.cursor)
	switch t.Kind {
	case disasm.TransitionDrillIn, disasm.TransitionReturn:
		cmd := m.regenerate()
		return m, cmd
	case disasm.TransitionJump:
		m.cursor = m.viewer.View().Focus
		m.ensureVisible()
	default:
		m.status = "nothing to follow on this line"
	}
	return m, nil
}

func (m model) handleSearchKey(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c":
		return m.quit()
	case "enter":
		m.searching = false
		m.search.Blur()
		m.viewer.SetSearch(m.search.Value())
		m.nextMatch(0)
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.viewer.SetSearch("")
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.viewer.SetSearch(m.search.Value())
	return m, cmd
}

func (m *model) rows() []disasm.Row {
	if v := m.viewer.View(); v != nil {
		return v.Rows
	}
	return nil
}

func (m *model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
	m.ensureVisible()
}

func (m *model) clampCursor() {
	n := len(m.rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// nextMatch moves to the next row matching the search, wrapping around.
// A step of 0 accepts the current row.
func (m *model) nextMatch(step int) {
	rows := m.rows()
	s := m.viewer.Search()
	if len(rows) == 0 || s.Text == "" {
		return
	}
	dir := step
	if dir == 0 {
		dir = 1
	}
	for i := 0; i < len(rows); i++ {
		idx := ((m.cursor+step+i*dir)%len(rows) + len(rows)) % len(rows)
		if s.Matches(rows[idx].Text) {
			m.cursor = idx
			m.ensureVisible()
			return
		}
	}
	m.status = fmt.Sprintf("%q not found", s.Text)
}

// bodyHeight is the number of listing rows on screen: the window minus
// title, column header, status line and menu bar.
func (m *model) bodyHeight() int {
	if h := m.height - 4; h > 1 {
		return h
	}
	return 1
}

func (m *model) ensureVisible() {
	body := m.bodyHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+body {
		m.offset = m.cursor - body + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func copyCmd(view *disasm.View) tea.Cmd {
	return func() tea.Msg {
		if view == nil || len(view.Rows) == 0 {
			return copiedMsg{}
		}
		err := clipboard.WriteAll(export.PlainText(view.Columns, view.Rows))
		return copiedMsg{lines: len(view.Rows), err: err}
	}
}

func exportCmd(view *disasm.View) tea.Cmd {
	return func() tea.Msg {
		if view == nil || len(view.Rows) == 0 {
			return exportedMsg{err: fmt.Errorf("nothing to export")}
		}
		path := exportFileName(view.Symbol)
		f, err := os.Create(path)
		if err != nil {
			return exportedMsg{err: err}
		}
		defer f.Close()
		if err := export.WriteCSV(f, view.Columns, view.Rows); err != nil {
			return exportedMsg{err: err}
		}
		abs, _ := filepath.Abs(path)
		return exportedMsg{path: abs}
	}
}

// exportFileName derives a file name from the symbol, keeping only
// characters that are safe in any file system.
func exportFileName(sym disasm.Symbol) string {
	name := sym.Name
	if i := strings.IndexByte(name, '('); i > 0 {
		name = name[:i]
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			sb.WriteRune(r)
		case r == ':' || r == ' ':
			sb.WriteRune('_')
		}
	}
	base := strings.Trim(sb.String(), "_.")
	if base == "" {
		base = "result"
	}
	if len(base) > 64 {
		base = base[:64]
	}
	return base + ".csv"
}

func (m model) View() string {
	var content string
	switch m.mode {
	case viewAsm:
		content = m.asmView()
	case viewInfo:
		content = m.info.View()
	default:
		content = m.symbolsList.View()
	}

	var menu string
	switch m.mode {
	case viewAsm:
		menu = " Enter: follow • ⌫: back • /: search • a: annotate • i: intel • r: raw • h: addr • m: approach • y: copy • e: csv • Q: quit "
	case viewInfo:
		menu = " Tab: cycle • Q: quit "
	default:
		menu = " Enter: disassemble • /: filter • Tab: cycle • Q: quit "
	}

	return content + "\n" + m.painter.Theme.Menu.Width(m.width).Render(menu)
}

// asmView draws title, column header, the visible rows and a status line.
func (m model) asmView() string {
	th := m.painter.Theme
	view := m.viewer.View()
	clip := lipgloss.NewStyle().MaxWidth(m.width)

	var sb strings.Builder
	sb.WriteString(clip.Render(th.Header.Render(m.title())))
	sb.WriteByte('\n')

	costCols := view.Columns
	if len(costCols) > 0 {
		costCols = costCols[1:]
	}
	widths := make([]int, len(costCols))
	var header strings.Builder
	header.WriteString("  ")
	for i, c := range costCols {
		widths[i] = max(len(c), 8)
		fmt.Fprintf(&header, "%*s ", widths[i], c)
	}
	if len(view.Columns) > 0 {
		header.WriteString(view.Columns[0])
	}
	sb.WriteString(clip.Render(th.Header.Render(header.String())))
	sb.WriteByte('\n')

	search := m.viewer.Search()
	body := m.bodyHeight()
	for i := m.offset; i < m.offset+body; i++ {
		if i < len(view.Rows) {
			row := view.Rows[i]
			indicator := "  "
			if i == m.cursor {
				indicator = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Render("> ")
			}
			var line strings.Builder
			line.WriteString(indicator)
			for c, w := range widths {
				cell := ""
				if c < len(row.Costs) {
					cell = row.Costs[c]
				}
				line.WriteString(m.painter.Cost(fmt.Sprintf("%*s", w, cell)))
				line.WriteByte(' ')
			}
			line.WriteString(m.painter.Row(row, i, search))
			sb.WriteString(clip.Render(line.String()))
		}
		sb.WriteByte('\n')
	}

	sb.WriteString(clip.Render(m.statusLine()))
	return sb.String()
}

func (m model) title() string {
	stack := m.viewer.Stack()
	names := make([]string, 0, len(stack)+1)
	for _, s := range stack {
		names = append(names, s.Name)
	}
	cur := m.viewer.Current()
	names = append(names, cur.Name)
	return fmt.Sprintf("%s (%s) [%s]", strings.Join(names, " › "), cur.Binary, actionName(m.viewer.Action()))
}

func (m model) statusLine() string {
	if m.searching {
		return m.search.View()
	}
	if m.loading {
		return fmt.Sprintf("%s running %s…", m.spinner.View(), actionName(m.viewer.Action()))
	}
	status := m.status
	if status == "" {
		if view := m.viewer.View(); view != nil && view.Command != "" {
			status = "$ " + view.Command
		}
	}
	return m.painter.Theme.Status.Render(status)
}

// updateInfo renders the profile summary into the info viewport.
func (m *model) updateInfo() {
	p := m.session.profile
	res := p.Result

	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", filepath.Base(p.Path))
	fmt.Fprintf(&md, "```\n; %s\n; arch %s, %s\n", p.Path, m.viewer.Arch().Name, m.viewer.Arch().Objdump)
	if v := m.viewer.ObjdumpVersion(); v != "" {
		fmt.Fprintf(&md, "; objdump %s", v)
		if m.viewer.DisassemblyDisabled() {
			md.WriteString(" (disassembly disabled)")
		}
		md.WriteByte('\n')
	}
	md.WriteString("```\n\n")

	md.WriteString("## Events\n\n| Event | Unit | Total |\n|---|---|---|\n")
	for i, ev := range res.EventTypes {
		unit := ""
		if i < len(p.Units) {
			unit = p.Units[i]
		}
		fmt.Fprintf(&md, "| %s | %s | %s |\n", ev, unit, humanize.Comma(int64(p.Totals[i])))
	}

	fmt.Fprintf(&md, "\n%s samples", humanize.Comma(int64(p.Samples)))
	if p.Skipped > 0 {
		fmt.Fprintf(&md, ", %s without symbols", humanize.Comma(int64(p.Skipped)))
	}
	if p.Duration > 0 {
		fmt.Fprintf(&md, " over %s", p.Duration)
	}
	fmt.Fprintf(&md, ". %d binaries read.\n", p.Binaries)
	if names, hits := profile.DemangleCacheStats(); names > 0 {
		fmt.Fprintf(&md, "Demangled %d names (%d cache hits).\n", names, hits)
	}

	md.WriteString("\n## Hottest symbols\n\n")
	for i, sym := range res.Symbols {
		if i == 10 {
			break
		}
		share := 0.0
		if len(p.Totals) > 0 && p.Totals[0] > 0 {
			share = res.Entry(sym).Total[0] / p.Totals[0] * 100
		}
		fmt.Fprintf(&md, "%d. **%s** `%s` %.2f%%\n", i+1, sym.Name, sym.Binary, share)
	}

	renderer, err := styles.MarkdownRenderer(m.width - 2)
	if err != nil {
		m.info.SetContent(md.String())
		return
	}
	rendered, err := renderer.Render(md.String())
	if err != nil {
		rendered = md.String()
	}
	m.info.SetContent(strings.TrimSuffix(rendered, "\n"))
}
