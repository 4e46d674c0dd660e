package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/datatree/internal/testutil"
	"github.com/starford/datatree/internal/treeservice"
	"github.com/starford/datatree/internal/workbench"
)

func unwrap(t *testing.T, m tea.Model) Model {
	t.Helper()
	switch v := m.(type) {
	case Model:
		return v
	case *Model:
		return *v
	default:
		t.Fatalf("unexpected model type %T", m)
		return Model{}
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msgs ...tea.KeyMsg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = unwrap(t, next)
	}
	return m
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func newTestModel(t *testing.T, mode string) (Model, *workbench.Workbench, string) {
	t.Helper()
	dir, store := testutil.TestDataDir(t)
	wb := workbench.New(mode, nil, store, testutil.DiscardLogger(), nil)
	if err := wb.Open(t.Context()); err != nil {
		t.Fatal(err)
	}
	return New(context.Background(), wb, nil), wb, dir
}

func addEntry(t *testing.T, svc *treeservice.Service, parent, name, content string, img []byte) {
	t.Helper()
	d := treeservice.NewEntryDraft(parent)
	d.Name = name
	d.Content = content
	if img != nil {
		d.SelectImage(img, "pic.png")
	}
	if err := svc.AddEntry(t.Context(), d); err != nil {
		t.Fatal(err)
	}
}

func TestAddFolderFromKeys(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	m = press(t, m, runes("f"))
	if m.mode != modeFolder {
		t.Fatalf("mode = %v, want folder prompt", m.mode)
	}
	m = press(t, m, runes("Projects/2024"), enter)

	if m.mode != modeBrowse || m.statusErr {
		t.Fatalf("mode = %v status = %q", m.mode, m.status)
	}
	got := wb.Services()[0].FolderChoices()
	want := []string{"", "Projects", "Projects/2024"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("folders = %q, want %q", got, want)
	}
	if row, _ := m.selected(); row.Path != "Projects/2024" {
		t.Errorf("selected = %q", row.Path)
	}
}

func TestAddFolderInsideEntryShowsError(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	addEntry(t, wb.Services()[0], "", "note", "text", nil)

	// The selected row is the entry, so the new folder goes to its parent (the root).
	m = press(t, m, runes("f"), runes("note/sub"), enter)
	if !m.statusErr || !strings.Contains(m.status, "is an entry") {
		t.Errorf("status = %q", m.status)
	}
}

func TestAddEntryUnderSelectedFolder(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	svc := wb.Services()[0]
	if err := svc.AddFolder(t.Context(), "", "Projects"); err != nil {
		t.Fatal(err)
	}

	m = press(t, m, runes("n"))
	if m.mode != modeEntry {
		t.Fatalf("mode = %v", m.mode)
	}
	if got := m.form.inputs[fieldParent].Value(); got != "Projects" {
		t.Errorf("parent prefill = %q", got)
	}
	m = press(t, m, tab, runes("kickoff"), tab, runes("first meeting"), enter)
	if m.mode != modeBrowse {
		t.Fatalf("form still open: %q", m.form.err)
	}

	ev, err := svc.ViewEntry("Projects/kickoff")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Content != "first meeting" || ev.HasImage {
		t.Errorf("entry = %+v", ev)
	}
	if m.status != "Entry added: Projects/kickoff" {
		t.Errorf("status = %q", m.status)
	}
}

func TestAddEntryBlankContentKeepsForm(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	m = press(t, m, runes("n"), tab, runes("empty"), enter)

	if m.mode != modeEntry || m.form.err == "" {
		t.Fatalf("mode = %v err = %q", m.mode, m.form.err)
	}
	if rows, _ := wb.Services()[0].Outline(); len(rows) != 0 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestAddEntryCyclesParentChoices(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	svc := wb.Services()[0]
	if err := svc.AddFolder(t.Context(), "", "A/B"); err != nil {
		t.Fatal(err)
	}
	m.cursors[0] = 0 // A
	m = press(t, m, runes("n"), tea.KeyMsg{Type: tea.KeyCtrlP})
	if got := m.form.inputs[fieldParent].Value(); got != "A/B" {
		t.Errorf("after ctrl+p parent = %q", got)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	if got := m.form.inputs[fieldParent].Value(); got != "" {
		t.Errorf("choices should wrap to root, got %q", got)
	}
}

func TestAddEntryWithImageFile(t *testing.T) {
	m, wb, dir := newTestModel(t, workbench.ModeSingle)
	img := testutil.WriteFile(t, dir, "pic.png", string(testutil.PNG(t, 3, 2)))

	m = press(t, m, runes("n"), tab, runes("shot"), tab, runes("see picture"), tab, runes(img))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	if got := m.form.draft.ImageStatus(); got != "Image selected: pic.png" {
		t.Errorf("image status = %q", got)
	}
	m = press(t, m, enter)

	ev, err := wb.Services()[0].ViewEntry("shot")
	if err != nil {
		t.Fatal(err)
	}
	if !ev.HasImage || ev.Image == nil || ev.Image.Width != 3 {
		t.Errorf("entry = %+v", ev)
	}
}

func TestEditEntryRemovesImage(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	svc := wb.Services()[0]
	addEntry(t, svc, "", "e", "one", testutil.PNG(t, 2, 2))

	m = press(t, m, runes("e"))
	if m.mode != modeEntry || !m.form.draft.Editing() {
		t.Fatalf("mode = %v", m.mode)
	}
	if got := m.form.inputs[fieldContent].Value(); got != "one" {
		t.Errorf("content prefill = %q", got)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlX}, runes(" two"), enter)

	ev, err := svc.ViewEntry("e")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Content != "one two" || ev.HasImage {
		t.Errorf("entry = %+v", ev)
	}
}

func TestEditOnFolderIsRefused(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	if err := wb.Services()[0].AddFolder(t.Context(), "", "F"); err != nil {
		t.Fatal(err)
	}
	m = press(t, m, runes("e"))
	if m.mode != modeBrowse || m.status != "Select an entry to edit" {
		t.Errorf("mode = %v status = %q", m.mode, m.status)
	}
}

func TestDeleteAsksFirst(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	svc := wb.Services()[0]
	if err := svc.AddFolder(t.Context(), "", "Gone"); err != nil {
		t.Fatal(err)
	}

	m = press(t, m, runes("d"))
	if m.mode != modeConfirm || !strings.Contains(m.confirm.message, "Are you sure") {
		t.Fatalf("mode = %v message = %q", m.mode, m.confirm.message)
	}
	m = press(t, m, enter) // defaults to No
	if rows, _ := svc.Outline(); len(rows) != 1 {
		t.Fatal("folder deleted without confirmation")
	}

	m = press(t, m, runes("d"), runes("y"))
	if rows, _ := svc.Outline(); len(rows) != 0 {
		t.Errorf("rows after delete = %+v", rows)
	}
	if m.status != "Deleted Gone" {
		t.Errorf("status = %q", m.status)
	}
}

func TestToggleAllAndRowToggle(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	svc := wb.Services()[0]
	if err := svc.AddFolder(t.Context(), "", "A/B"); err != nil {
		t.Fatal(err)
	}
	if rows, _ := svc.Outline(); len(rows) != 2 {
		t.Fatalf("rows = %d, want both expanded", len(rows))
	}

	m = press(t, m, space)
	if rows, all := svc.Outline(); len(rows) != 1 || all {
		t.Errorf("after collapse all: rows=%d all=%v", len(rows), all)
	}
	m = press(t, m, enter)
	if rows, _ := svc.Outline(); len(rows) != 2 {
		t.Errorf("enter on folder should expand it, rows=%d", len(rows))
	}
	m = press(t, m, runes("h"))
	if rows, _ := svc.Outline(); len(rows) != 1 {
		t.Errorf("h should collapse, rows=%d", len(rows))
	}
	press(t, m, runes("l"))
	if rows, _ := svc.Outline(); len(rows) != 2 {
		t.Errorf("l should expand, rows=%d", len(rows))
	}
}

func TestCursorMovement(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	svc := wb.Services()[0]
	addEntry(t, svc, "", "a", "1", nil)
	addEntry(t, svc, "", "b", "2", nil)

	m = press(t, m, runes("j"), runes("j"), runes("j"))
	if m.cursors[0] != 1 {
		t.Errorf("cursor = %d, want clamped to 1", m.cursors[0])
	}
	m = press(t, m, runes("k"))
	if m.cursors[0] != 0 {
		t.Errorf("cursor = %d", m.cursors[0])
	}
}

func TestViewEntry(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	addEntry(t, wb.Services()[0], "", "memo", "remember the milk", nil)

	m = press(t, m, enter)
	if m.mode != modeView {
		t.Fatalf("mode = %v", m.mode)
	}
	view := m.View()
	if !strings.Contains(view, "remember the milk") || !strings.Contains(view, "No image") {
		t.Errorf("view = %q", view)
	}
	m = press(t, m, esc)
	if m.mode != modeBrowse || m.entry != nil {
		t.Errorf("esc should close the viewer")
	}
}

func TestSearch(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	addEntry(t, wb.Services()[0], "Fruits", "apple", "red", nil)

	m = press(t, m, runes("/"), runes("APP"), enter)
	if m.mode != modeResults {
		t.Fatalf("mode = %v status = %q", m.mode, m.status)
	}
	if len(m.results) != 1 || m.results[0] != "Entry: Fruits/apple (content: red)" {
		t.Errorf("results = %q", m.results)
	}

	m = press(t, m, esc, runes("/"), runes("red"), enter)
	if len(m.results) != 1 || m.results[0] != "No matches found." {
		t.Errorf("content must not match: %q", m.results)
	}
}

func TestLoadFile(t *testing.T) {
	m, wb, dir := newTestModel(t, workbench.ModeSingle)
	testutil.WriteFile(t, dir, "other.json", `{"legacy": "plain text"}`)

	m = press(t, m, runes("o"), enter)
	if m.mode != modeBrowse || m.status != "" {
		t.Fatalf("empty load should be a no-op, status = %q", m.status)
	}

	m = press(t, m, runes("o"), runes("other.json"), enter)
	if m.statusErr {
		t.Fatalf("load: %s", m.status)
	}
	if title := wb.Title(); title != "DataTree - other.json" {
		t.Errorf("title = %q", title)
	}
	ev, err := wb.Services()[0].ViewEntry("legacy")
	if err != nil || ev.Content != "plain text" {
		t.Errorf("entry = %+v err = %v", ev, err)
	}
	if !strings.Contains(m.View(), "DataTree - other.json") {
		t.Error("header should show the loaded file")
	}
}

func TestLoadMalformedKeepsTree(t *testing.T) {
	m, wb, dir := newTestModel(t, workbench.ModeSingle)
	svc := wb.Services()[0]
	addEntry(t, svc, "", "keep", "me", nil)
	testutil.WriteFile(t, dir, "broken.json", `{not json`)

	m = press(t, m, runes("o"), runes("broken.json"), enter)
	if !m.statusErr {
		t.Errorf("status = %q, want an error", m.status)
	}
	if _, err := svc.ViewEntry("keep"); err != nil {
		t.Errorf("tree replaced after failed load: %v", err)
	}
}

func TestDualPanes(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeDual)
	m = press(t, m, tab, runes("f"), runes("OnlyBad"), enter)

	good, _ := wb.Get("good")
	bad, _ := wb.Get("bad")
	if rows, _ := good.Outline(); len(rows) != 0 {
		t.Errorf("good rows = %+v", rows)
	}
	if rows, _ := bad.Outline(); len(rows) != 1 {
		t.Errorf("bad rows = %+v", rows)
	}
	view := m.View()
	if !strings.Contains(view, "Good DataTree") || !strings.Contains(view, "Bad DataTree") {
		t.Errorf("both panes should render: %q", view)
	}
	if !strings.Contains(view, "Dual DataTree") {
		t.Error("missing dual title")
	}
}

func TestTreeEventClampsCursor(t *testing.T) {
	m, wb, _ := newTestModel(t, workbench.ModeSingle)
	svc := wb.Services()[0]
	addEntry(t, svc, "", "a", "1", nil)
	addEntry(t, svc, "", "b", "2", nil)
	m.cursors[0] = 1

	if _, err := svc.DeleteItem(t.Context(), "b", treeservice.Confirmed); err != nil {
		t.Fatal(err)
	}
	next, _ := m.Update(treeEventMsg{Tree: "main", Kind: treeservice.EventDeleted, Path: "b"})
	m = unwrap(t, next)
	if m.cursors[0] != 0 {
		t.Errorf("cursor = %d, want 0", m.cursors[0])
	}
}

func TestWaitForEventForwards(t *testing.T) {
	ch := make(chan treeservice.Event, 1)
	ch <- treeservice.Event{Tree: "main", Kind: treeservice.EventLoaded, Path: "x.json"}
	msg := waitForEvent(ch)()
	ev, ok := msg.(treeEventMsg)
	if !ok || ev.Path != "x.json" {
		t.Errorf("msg = %#v", msg)
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t, workbench.ModeSingle)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
