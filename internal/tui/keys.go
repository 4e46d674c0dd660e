package tui

import "github.com/charmbracelet/bubbles/key"

type browseKeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Open       key.Binding
	Collapse   key.Binding
	Expand     key.Binding
	ToggleAll  key.Binding
	NewFolder  key.Binding
	NewEntry   key.Binding
	Edit       key.Binding
	Delete     key.Binding
	Search     key.Binding
	Load       key.Binding
	SwitchPane key.Binding
	Quit       key.Binding
}

var browseKeys = browseKeyMap{
	Up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Open:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "view/toggle")),
	Collapse:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h", "collapse")),
	Expand:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l", "expand")),
	ToggleAll:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle all")),
	NewFolder:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "folder")),
	NewEntry:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "entry")),
	Edit:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
	Delete:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Load:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "load file")),
	SwitchPane: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch tree")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type formKeyMap struct {
	Next        key.Binding
	Prev        key.Binding
	NextParent  key.Binding
	AttachImage key.Binding
	RemoveImage key.Binding
	Submit      key.Binding
	Cancel      key.Binding
}

var formKeys = formKeyMap{
	Next:        key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
	Prev:        key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev field")),
	NextParent:  key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "next parent")),
	AttachImage: key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "attach image")),
	RemoveImage: key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "remove image")),
	Submit:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
	Cancel:      key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel")),
}

func helpLine(bindings ...key.Binding) string {
	var out string
	for i, b := range bindings {
		if i > 0 {
			out += " • "
		}
		h := b.Help()
		out += h.Key + ": " + h.Desc
	}
	return out
}
