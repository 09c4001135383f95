package nvim

import (
	"errors"
	"fmt"
	"os"

	"github.com/neovim/go-client/nvim"
)

// ErrNoInstance is returned when no running Neovim advertises its address.
var ErrNoInstance = errors.New("no running neovim instance")

// addressEnvVars are checked in order; $NVIM is set inside :terminal.
var addressEnvVars = []string{"NVIM", "NVIM_LISTEN_ADDRESS"}

// Manager handles the connection to a running Neovim instance.
type Manager struct {
	nvim *nvim.Nvim
}

// Address returns the advertised address of a running Neovim, if any.
func Address() string {
	for _, key := range addressEnvVars {
		if addr := os.Getenv(key); addr != "" {
			return addr
		}
	}
	return ""
}

// New connects to the Neovim instance advertised in the environment.
func New() (*Manager, error) {
	addr := Address()
	if addr == "" {
		return nil, ErrNoInstance
	}
	return Dial(addr)
}

// Dial connects to the Neovim instance listening on addr.
func Dial(addr string) (*Manager, error) {
	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to neovim at %s: %w", addr, err)
	}
	return &Manager{nvim: v}, nil
}

// Close disconnects from Neovim.
func (m *Manager) Close() {
	if m.nvim != nil {
		m.nvim.Close()
	}
}

// ReloadBuffers asks Neovim to re-read every buffer whose file changed on disk.
func (m *Manager) ReloadBuffers() error {
	b := m.nvim.NewBatch()
	b.Command("checktime")
	b.Command("redraw")
	return b.Execute()
}

// Reload notifies a running Neovim, if one is advertised, that files
// changed. It returns ErrNoInstance when there is nothing to notify.
func Reload() error {
	m, err := New()
	if err != nil {
		return err
	}
	defer m.Close()
	return m.ReloadBuffers()
}
