package tableview

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
)

type keyMap struct {
	Quit      key.Binding
	Search    key.Binding
	Filters   key.Binding
	Settings  key.Binding
	Reset     key.Binding
	Focus     key.Binding
	Close     key.Binding
	Refresh   key.Binding
	Select    key.Binding
	All       key.Binding
	None      key.Binding
	NextPage  key.Binding
	PrevPage  key.Binding
	Sort      key.Binding
	Send      key.Binding
	Copy      key.Binding
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	MoveLeft  key.Binding
	MoveRight key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Filters:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filters")),
		Settings: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "columns")),
		Reset:    key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset")),
		Focus:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "panel")),
		Close:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Select:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		All:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all")),
		None:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "none")),
		NextPage: key.NewBinding(key.WithKeys("n", "pgdown"), key.WithHelp("n", "next")),
		PrevPage: key.NewBinding(key.WithKeys("p", "pgup"), key.WithHelp("p", "prev")),
		Sort: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "sort"),
		),
		Send:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "send")),
		Copy:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy email")),
		Up:        key.NewBinding(key.WithKeys("up", "k")),
		Down:      key.NewBinding(key.WithKeys("down", "j")),
		Left:      key.NewBinding(key.WithKeys("left", "h")),
		Right:     key.NewBinding(key.WithKeys("right", "l")),
		MoveLeft:  key.NewBinding(key.WithKeys("<")),
		MoveRight: key.NewBinding(key.WithKeys(">")),
	}
}

// helpBindings are listed in the footer, in order.
func (k keyMap) helpBindings() []key.Binding {
	return []key.Binding{
		k.Search, k.Filters, k.Settings, k.Reset, k.Select, k.All, k.None,
		k.NextPage, k.PrevPage, k.Sort, k.Send, k.Copy, k.Refresh, k.Quit,
	}
}

// tableKeyMap keeps the row navigation keys of the table and frees the
// letters the view binds itself.
func tableKeyMap() table.KeyMap {
	km := table.DefaultKeyMap()
	km.LineUp = key.NewBinding(key.WithKeys("up", "k", "ctrl+p"))
	km.LineDown = key.NewBinding(key.WithKeys("down", "j", "ctrl+n"))
	km.PageUp = key.NewBinding(key.WithKeys("ctrl+b"))
	km.PageDown = key.NewBinding(key.WithKeys("ctrl+f"))
	km.HalfPageUp = key.NewBinding(key.WithKeys("ctrl+u"))
	km.HalfPageDown = key.NewBinding(key.WithKeys("ctrl+d"))
	km.GotoTop = key.NewBinding(key.WithKeys("home", "g"))
	km.GotoBottom = key.NewBinding(key.WithKeys("end", "G"))
	return km
}
