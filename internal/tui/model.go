// Package tui is the terminal front end: one outline pane per mounted tree, with forms for
// adding, editing, deleting, searching and loading.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/datatree/internal/tree"
	"github.com/starford/datatree/internal/treeservice"
	"github.com/starford/datatree/internal/workbench"
)

type mode int

const (
	modeBrowse mode = iota
	modeView
	modeFolder
	modeEntry
	modeConfirm
	modeSearch
	modeResults
	modeLoad
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("241")).Padding(0, 1)
	activePane    = paneStyle.BorderForeground(lipgloss.Color("212"))
	paneTitle     = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	folderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// treeEventMsg carries a change reported by a tree service, possibly from another front end
// or the file watcher.
type treeEventMsg treeservice.Event

// Model is the root bubbletea model.
type Model struct {
	ctx     context.Context
	wb      *workbench.Workbench
	panes   []*treeservice.Service
	cursors []int
	active  int
	events  <-chan treeservice.Event

	mode       mode
	form       *entryForm
	line       *lineInput
	lineParent string
	confirm    confirmModel
	entry      *treeservice.EntryView
	results    []string

	status    string
	statusErr bool
	width     int
}

// New builds the model. events may be nil when nothing else changes the trees.
func New(ctx context.Context, wb *workbench.Workbench, events <-chan treeservice.Event) Model {
	panes := wb.Services()
	return Model{
		ctx:     ctx,
		wb:      wb,
		panes:   panes,
		cursors: make([]int, len(panes)),
		events:  events,
	}
}

// Run starts the terminal UI and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, wb *workbench.Workbench, events <-chan treeservice.Event) error {
	p := tea.NewProgram(New(ctx, wb, events), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func waitForEvent(events <-chan treeservice.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return treeEventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return waitForEvent(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case treeEventMsg:
		m.clampCursors()
		if msg.Kind == treeservice.EventLoaded && m.mode == modeBrowse {
			m.setStatus(fmt.Sprintf("%s: loaded %s", msg.Tree, msg.Path))
		}
		if m.events == nil {
			return m, nil
		}
		return m, waitForEvent(m.events)

	case tea.KeyMsg:
		switch m.mode {
		case modeBrowse:
			return m.updateBrowse(msg)
		case modeView, modeResults:
			switch msg.String() {
			case "esc", "enter", "q":
				m.mode = modeBrowse
				m.entry = nil
				m.results = nil
			}
			return m, nil
		case modeEntry:
			return m.updateForm(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		case modeFolder, modeSearch, modeLoad:
			return m.updateLine(msg)
		}
	}
	return m, nil
}

func (m *Model) service() *treeservice.Service { return m.panes[m.active] }

func (m *Model) rows() []treeservice.OutlineRow {
	rows, _ := m.service().Outline()
	return rows
}

func (m *Model) clampCursors() {
	for i, svc := range m.panes {
		rows, _ := svc.Outline()
		if m.cursors[i] >= len(rows) {
			m.cursors[i] = len(rows) - 1
		}
		if m.cursors[i] < 0 {
			m.cursors[i] = 0
		}
	}
}

func (m *Model) selected() (treeservice.OutlineRow, bool) {
	m.clampCursors()
	rows := m.rows()
	if len(rows) == 0 {
		return treeservice.OutlineRow{}, false
	}
	return rows[m.cursors[m.active]], true
}

func (m *Model) selectPath(path string) {
	for i, r := range m.rows() {
		if r.Path == path {
			m.cursors[m.active] = i
			return
		}
	}
	m.clampCursors()
}

// contextParent is the folder new items are added to: the selected folder, or the parent of
// the selected entry.
func (m *Model) contextParent() string {
	row, ok := m.selected()
	if !ok {
		return ""
	}
	if row.Folder {
		return row.Path
	}
	p, err := tree.ParsePath(row.Path)
	if err != nil {
		return ""
	}
	return p.Parent().String()
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

func rootLabel(parent string) string {
	if parent == "" {
		return "(root)"
	}
	return parent
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	svc := m.service()
	switch {
	case key.Matches(msg, browseKeys.Quit):
		return m, tea.Quit

	case key.Matches(msg, browseKeys.Up):
		if m.cursors[m.active] > 0 {
			m.cursors[m.active]--
		}

	case key.Matches(msg, browseKeys.Down):
		if m.cursors[m.active] < len(m.rows())-1 {
			m.cursors[m.active]++
		}

	case key.Matches(msg, browseKeys.SwitchPane):
		m.active = (m.active + 1) % len(m.panes)

	case key.Matches(msg, browseKeys.Open):
		row, ok := m.selected()
		if !ok {
			break
		}
		if row.Folder {
			if err := svc.ToggleRow(row.Path); err != nil {
				m.setError(err)
			}
			break
		}
		ev, err := svc.ViewEntry(row.Path)
		if err != nil {
			m.setError(err)
			break
		}
		m.entry = ev
		m.mode = modeView

	case key.Matches(msg, browseKeys.Collapse):
		row, ok := m.selected()
		if !ok {
			break
		}
		if row.Folder && row.Expanded {
			if err := svc.SetExpanded(row.Path, false); err != nil {
				m.setError(err)
			}
			break
		}
		if p, err := tree.ParsePath(row.Path); err == nil && len(p) > 1 {
			m.selectPath(p.Parent().String())
		}

	case key.Matches(msg, browseKeys.Expand):
		row, ok := m.selected()
		if ok && row.Folder {
			if err := svc.SetExpanded(row.Path, true); err != nil {
				m.setError(err)
			}
		}

	case key.Matches(msg, browseKeys.ToggleAll):
		if svc.ToggleAll() {
			m.setStatus("Expanded all folders")
		} else {
			m.setStatus("Collapsed all folders")
		}
		m.clampCursors()

	case key.Matches(msg, browseKeys.NewFolder):
		m.lineParent = m.contextParent()
		m.line = newLineInput("Add folder under "+rootLabel(m.lineParent), "folder path, e.g. a/b/c")
		m.mode = modeFolder

	case key.Matches(msg, browseKeys.NewEntry):
		draft := treeservice.NewEntryDraft(m.contextParent())
		m.form = newEntryForm(draft, "", svc.FolderChoices())
		m.mode = modeEntry

	case key.Matches(msg, browseKeys.Edit):
		row, ok := m.selected()
		if !ok || row.Folder {
			m.setStatus("Select an entry to edit")
			break
		}
		draft, err := svc.EditDraft(row.Path)
		if err != nil {
			m.setError(err)
			break
		}
		m.form = newEntryForm(draft, row.Path, nil)
		m.mode = modeEntry

	case key.Matches(msg, browseKeys.Delete):
		row, ok := m.selected()
		if !ok {
			break
		}
		prompt, err := svc.DeletePrompt(row.Path)
		if err != nil {
			m.setError(err)
			break
		}
		m.confirm = newConfirmModel(prompt, row.Path)
		m.mode = modeConfirm

	case key.Matches(msg, browseKeys.Search):
		m.line = newLineInput("Search "+svc.Label(), "name fragment")
		m.mode = modeSearch

	case key.Matches(msg, browseKeys.Load):
		m.line = newLineInput("Load file into "+svc.Label(), "path to a .json file")
		m.mode = modeLoad
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	res, cmd := m.form.Update(msg)
	switch res {
	case formCancel:
		m.form = nil
		m.mode = modeBrowse
	case formSubmit:
		svc := m.service()
		d := m.form.draft
		var err error
		var path string
		if d.Editing() {
			path = m.form.editPath
			err = svc.EditEntry(m.ctx, path, d)
		} else {
			err = svc.AddEntry(m.ctx, d)
			if err == nil {
				p, _ := tree.ParsePath(d.Parent)
				path = p.Join(d.Name).String()
			}
		}
		if err != nil {
			m.form.err = err.Error()
			return m, nil
		}
		if d.Editing() {
			m.setStatus("Entry updated: " + path)
		} else {
			m.setStatus("Entry added: " + path)
		}
		m.form = nil
		m.mode = modeBrowse
		m.selectPath(path)
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.confirm = m.confirm.Update(msg)
	if !m.confirm.done {
		return m, nil
	}
	m.mode = modeBrowse
	if !m.confirm.answer {
		m.setStatus("Delete cancelled")
		return m, nil
	}
	deleted, err := m.service().DeleteItem(m.ctx, m.confirm.path, treeservice.Confirmed)
	switch {
	case err != nil:
		m.setError(err)
	case deleted:
		m.setStatus("Deleted " + m.confirm.path)
	}
	m.clampCursors()
	return m, nil
}

func (m Model) updateLine(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	res, cmd := m.line.Update(msg)
	if res == formContinue {
		return m, cmd
	}
	value := m.line.Value()
	current := m.mode
	m.line = nil
	m.mode = modeBrowse
	if res == formCancel {
		return m, nil
	}

	svc := m.service()
	switch current {
	case modeFolder:
		if err := svc.AddFolder(m.ctx, m.lineParent, value); err != nil {
			m.setError(err)
			break
		}
		full := strings.Trim(m.lineParent+"/"+strings.Trim(value, "/"), "/")
		m.setStatus("Folder added: " + full)
		m.selectPath(full)

	case modeSearch:
		lines, err := svc.Search(value)
		if err != nil {
			m.setError(err)
			break
		}
		m.results = lines
		m.mode = modeResults

	case modeLoad:
		file := strings.TrimSpace(value)
		if file == "" {
			break
		}
		if err := m.wb.Load(m.ctx, svc.Name(), file); err != nil {
			m.setError(err)
			break
		}
		m.cursors[m.active] = 0
		m.setStatus("Loaded " + file)
	}
	return m, nil
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.wb.Title()) + "\n\n")

	switch m.mode {
	case modeView:
		sb.WriteString(m.viewEntry())
	case modeResults:
		sb.WriteString(m.viewResults())
	case modeEntry:
		sb.WriteString(m.form.View())
	case modeConfirm:
		sb.WriteString(m.confirm.View())
	case modeFolder, modeSearch, modeLoad:
		sb.WriteString(m.line.View())
	default:
		sb.WriteString(m.viewPanes())
		sb.WriteString("\n" + dimStyle.Render(helpLine(
			browseKeys.Down, browseKeys.Open, browseKeys.ToggleAll, browseKeys.NewFolder,
			browseKeys.NewEntry, browseKeys.Edit, browseKeys.Delete, browseKeys.Search,
			browseKeys.Load, browseKeys.SwitchPane, browseKeys.Quit,
		)))
	}

	if m.status != "" {
		style := statusStyle
		if m.statusErr {
			style = errorStyle
		}
		sb.WriteString("\n" + style.Render(m.status))
	}
	return sb.String()
}

func (m Model) viewPanes() string {
	width := 40
	if m.width > 0 {
		width = m.width/len(m.panes) - 4
	}
	views := make([]string, len(m.panes))
	for i, svc := range m.panes {
		rows, _ := svc.Outline()
		var sb strings.Builder
		sb.WriteString(paneTitle.Render(svc.Label()) + "\n")
		if len(rows) == 0 {
			sb.WriteString(dimStyle.Render("(empty)"))
		}
		for j, r := range rows {
			line := renderRow(r)
			if i == m.active && j == m.cursors[i] {
				line = selectedStyle.Render(line)
			}
			sb.WriteString(line + "\n")
		}
		style := paneStyle
		if i == m.active {
			style = activePane
		}
		views[i] = style.Width(width).Render(strings.TrimRight(sb.String(), "\n"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

func renderRow(r treeservice.OutlineRow) string {
	indent := strings.Repeat("  ", r.Depth)
	if r.Folder {
		marker := "▸ "
		if r.Expanded {
			marker = "▾ "
		}
		return indent + folderStyle.Render(marker+r.Label)
	}
	line := indent + "• " + r.Label
	if r.HasImage {
		line += dimStyle.Render(" [img]")
	}
	return line
}

func (m Model) viewEntry() string {
	e := m.entry
	var sb strings.Builder
	sb.WriteString(promptLabelStyle.Render(e.Path) + "\n\n")
	sb.WriteString(e.Content + "\n\n")
	switch {
	case e.ImageError != "":
		sb.WriteString(errorStyle.Render(e.ImageError) + "\n")
	case e.Image != nil:
		sb.WriteString(dimStyle.Render(fmt.Sprintf("Image: %s %dx%d (%d bytes)",
			e.Image.Format, e.Image.Width, e.Image.Height, e.Image.Size)) + "\n")
	default:
		sb.WriteString(dimStyle.Render(treeservice.StatusNoImage) + "\n")
	}
	sb.WriteString("\n" + promptHintStyle.Render("esc: close"))
	return sb.String()
}

func (m Model) viewResults() string {
	var sb strings.Builder
	sb.WriteString(promptLabelStyle.Render("Search results") + "\n\n")
	for _, l := range m.results {
		sb.WriteString(l + "\n")
	}
	sb.WriteString("\n" + promptHintStyle.Render("esc: close"))
	return sb.String()
}
