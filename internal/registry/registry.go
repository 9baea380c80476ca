// Package registry persists user-side device knowledge between runs: which
// devices have been seen, where they last answered, and what the user calls
// them. The device firmware stores none of this, so it lives in a YAML file
// in the platform config directory.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muurk/wemolink/internal/discovery"
)

const (
	appName    = "wemolink"
	configFile = "devices.yaml"
)

// Registry is the whole persisted file.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // keyed by device ID
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device is the saved record for one appliance. It stores the last known
// address so point lookups can skip multicast discovery.
type Device struct {
	Nickname string    `yaml:"nickname,omitempty"`
	Name     string    `yaml:"name,omitempty"`
	Type     string    `yaml:"type,omitempty"`
	Host     string    `yaml:"host,omitempty"`
	Port     int       `yaml:"port,omitempty"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Preferences holds application-wide settings.
type Preferences struct {
	ScanTimeout  int  `yaml:"scan_timeout"` // seconds
	AutoDiscover bool `yaml:"auto_discover"`
}

// New returns a Registry with defaults.
func New() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			ScanTimeout:  5,
			AutoDiscover: true,
		},
	}
}

// Remember records a discovered device, preserving any user nickname already
// stored for it.
func (r *Registry) Remember(d *discovery.Device) {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	saved := r.Devices[d.ID]
	if saved == nil {
		saved = &Device{}
		r.Devices[d.ID] = saved
	}
	saved.Name = d.Name
	saved.Type = d.Type.String()
	saved.Host = d.Host
	saved.Port = d.Port
	saved.LastSeen = d.DiscoveredAt
}

// DisplayName returns the nickname when set, the device name otherwise.
func (d *Device) DisplayName() string {
	if d.Nickname != "" {
		return d.Nickname
	}
	return d.Name
}

// ConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/wemolink or $HOME/.config/wemolink
//   - macOS: $HOME/.config/wemolink
//   - Windows: %LOCALAPPDATA%\wemolink
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigPath returns the full path of the registry file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

var (
	global     *Registry
	globalOnce sync.Once
	globalErr  error

	fileMutex sync.Mutex
)

// Load returns the process-wide registry, reading it from disk on first
// call. A missing file yields a fresh default registry.
func Load() (*Registry, error) {
	globalOnce.Do(func() {
		path, err := ConfigPath()
		if err != nil {
			globalErr = err
			return
		}
		global, globalErr = LoadFrom(path)
	})
	return global, globalErr
}

// LoadFrom reads a registry from an explicit path. A missing file yields a
// fresh default registry rather than an error.
func LoadFrom(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if reg.Devices == nil {
		reg.Devices = make(map[string]*Device)
	}
	if reg.Preferences == nil {
		reg.Preferences = New().Preferences
	}
	return &reg, nil
}

// Save writes the registry to the default path, creating the config
// directory if needed.
func (r *Registry) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return r.SaveTo(path)
}

// SaveTo writes the registry to an explicit path.
func (r *Registry) SaveTo(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}
