package cli

import (
	"os"
	"path/filepath"
)

const (
	// DefaultBaseDir is the configuration directory under the home directory.
	DefaultBaseDir = ".grokconv"
	// DefaultConfigFile is the configuration file name.
	DefaultConfigFile = "config.yaml"
)

// Paths locates the grokconv files of one user.
type Paths struct {
	HomeDir string
}

// NewPaths returns the paths of the current user.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns ~/.grokconv.
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns ~/.grokconv/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// DataDir returns ~/.grokconv/data.
func (p *Paths) DataDir() string {
	return filepath.Join(p.BaseDir(), "data")
}

// DataPath returns a path within the data directory.
func (p *Paths) DataPath(name string) string {
	return filepath.Join(p.DataDir(), name)
}
