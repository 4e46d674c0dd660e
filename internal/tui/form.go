package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/datatree/internal/treeservice"
)

var (
	promptLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	promptHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	promptErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const (
	fieldParent = iota
	fieldName
	fieldContent
	fieldImage
	fieldCount
)

// entryForm edits a treeservice.EntryDraft. In edit mode parent and name are fixed.
type entryForm struct {
	draft    *treeservice.EntryDraft
	editPath string
	choices  []string
	inputs   []textinput.Model
	focus    int
	err      string
}

func newInput(placeholder, value string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 0
	ti.Width = 50
	ti.SetValue(value)
	return ti
}

func newEntryForm(draft *treeservice.EntryDraft, editPath string, choices []string) *entryForm {
	f := &entryForm{
		draft:    draft,
		editPath: editPath,
		choices:  choices,
		inputs: []textinput.Model{
			newInput("(root)", draft.Parent),
			newInput("entry name", draft.Name),
			newInput("content", draft.Content),
			newInput("path to image file", ""),
		},
	}
	f.focus = fieldParent
	if draft.Editing() {
		f.focus = fieldContent
	}
	f.inputs[f.focus].Focus()
	return f
}

func (f *entryForm) editable(field int) bool {
	return !f.draft.Editing() || field >= fieldContent
}

func (f *entryForm) move(step int) {
	f.inputs[f.focus].Blur()
	for {
		f.focus = (f.focus + step + fieldCount) % fieldCount
		if f.editable(f.focus) {
			break
		}
	}
	f.inputs[f.focus].Focus()
}

func (f *entryForm) nextParent() {
	if f.draft.Editing() || len(f.choices) == 0 {
		return
	}
	cur := f.inputs[fieldParent].Value()
	next := f.choices[0]
	for i, c := range f.choices {
		if c == cur {
			next = f.choices[(i+1)%len(f.choices)]
			break
		}
	}
	f.inputs[fieldParent].SetValue(next)
	f.inputs[fieldParent].CursorEnd()
}

func (f *entryForm) attachImage() bool {
	p := strings.TrimSpace(f.inputs[fieldImage].Value())
	if err := f.draft.SelectImageFile(p); err != nil {
		f.err = err.Error()
		return false
	}
	f.inputs[fieldImage].SetValue("")
	f.err = ""
	return true
}

// sync copies the inputs into the draft and attaches a pending image path.
func (f *entryForm) sync() bool {
	if !f.draft.Editing() {
		f.draft.Parent = strings.TrimSpace(f.inputs[fieldParent].Value())
		f.draft.Name = f.inputs[fieldName].Value()
	}
	f.draft.Content = f.inputs[fieldContent].Value()
	return f.attachImage()
}

// formResult tells the parent model what the key did.
type formResult int

const (
	formContinue formResult = iota
	formSubmit
	formCancel
)

func (f *entryForm) Update(msg tea.KeyMsg) (formResult, tea.Cmd) {
	switch {
	case key.Matches(msg, formKeys.Cancel):
		return formCancel, nil
	case key.Matches(msg, formKeys.Submit):
		if !f.sync() {
			return formContinue, nil
		}
		return formSubmit, nil
	case key.Matches(msg, formKeys.Next):
		f.move(1)
		return formContinue, nil
	case key.Matches(msg, formKeys.Prev):
		f.move(-1)
		return formContinue, nil
	case key.Matches(msg, formKeys.NextParent):
		f.nextParent()
		return formContinue, nil
	case key.Matches(msg, formKeys.AttachImage):
		f.attachImage()
		return formContinue, nil
	case key.Matches(msg, formKeys.RemoveImage):
		if f.draft.CanRemoveImage() {
			f.draft.RemoveImage()
		}
		return formContinue, nil
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return formContinue, cmd
}

func (f *entryForm) View() string {
	var sb strings.Builder
	if f.draft.Editing() {
		sb.WriteString(promptLabelStyle.Render("Edit entry: "+f.editPath) + "\n\n")
	} else {
		sb.WriteString(promptLabelStyle.Render("Add entry") + "\n\n")
		sb.WriteString("Parent:  " + f.inputs[fieldParent].View() + "\n")
		sb.WriteString("Name:    " + f.inputs[fieldName].View() + "\n")
	}
	sb.WriteString("Content: " + f.inputs[fieldContent].View() + "\n")
	sb.WriteString("Image:   " + f.inputs[fieldImage].View() + "\n")
	sb.WriteString(promptHintStyle.Render(f.draft.ImageStatus()) + "\n")
	if f.err != "" {
		sb.WriteString(promptErrorStyle.Render(f.err) + "\n")
	}

	bindings := []key.Binding{formKeys.Next, formKeys.AttachImage}
	if !f.draft.Editing() {
		bindings = append(bindings, formKeys.NextParent)
	}
	if f.draft.CanRemoveImage() {
		bindings = append(bindings, formKeys.RemoveImage)
	}
	bindings = append(bindings, formKeys.Submit, formKeys.Cancel)
	sb.WriteString("\n" + promptHintStyle.Render(helpLine(bindings...)))
	return sb.String()
}

// lineInput is a single-field prompt used for new folders, search and load.
type lineInput struct {
	title string
	input textinput.Model
}

func newLineInput(title, placeholder string) *lineInput {
	l := &lineInput{title: title, input: newInput(placeholder, "")}
	l.input.Focus()
	return l
}

func (l *lineInput) Update(msg tea.KeyMsg) (formResult, tea.Cmd) {
	switch {
	case key.Matches(msg, formKeys.Cancel):
		return formCancel, nil
	case key.Matches(msg, formKeys.Submit):
		return formSubmit, nil
	}
	var cmd tea.Cmd
	l.input, cmd = l.input.Update(msg)
	return formContinue, cmd
}

func (l *lineInput) Value() string { return l.input.Value() }

func (l *lineInput) View() string {
	return promptLabelStyle.Render(l.title) + "\n\n" +
		l.input.View() + "\n\n" +
		promptHintStyle.Render(helpLine(formKeys.Submit, formKeys.Cancel))
}
