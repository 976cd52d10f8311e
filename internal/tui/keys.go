package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

// bindingHelp adapts the controller's live shortcuts to help.KeyMap.
type bindingHelp struct {
	bindings []key.Binding
	quit     key.Binding
}

var _ help.KeyMap = bindingHelp{}

func (m *Model) keyMap() bindingHelp {
	live := m.ctrl.Keys().Describe()
	bindings := make([]key.Binding, 0, len(live))
	for _, h := range live {
		bindings = append(bindings, key.NewBinding(
			key.WithKeys(h.Keys),
			key.WithHelp(h.Keys, h.Description),
		))
	}
	return bindingHelp{bindings: bindings, quit: m.quit}
}

// ShortHelp implements help.KeyMap.
func (k bindingHelp) ShortHelp() []key.Binding {
	return append(append([]key.Binding(nil), k.bindings...), k.quit)
}

// FullHelp implements help.KeyMap.
func (k bindingHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.bindings, {k.quit, key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help"))}}
}
