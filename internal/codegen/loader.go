package codegen

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kolkov/tawk/internal/machine"
)

// Loader stores and loads compiled artifacts as <Dir>/<name>.tvm.
type Loader struct {
	Dir    string
	Logger *slog.Logger
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}

// Path returns the artifact path for name.
func (l *Loader) Path(name string) string {
	if name == "" {
		name = ScriptName
	}
	dir := l.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name+machine.Ext)
}

// Store writes an artifact produced by a generator.
func (l *Loader) Store(name string, data []byte) (string, error) {
	path := l.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	l.logger().Debug("artifact stored", "path", path, "bytes", len(data))
	return path, nil
}

// Load reads and verifies the artifact for name.
func (l *Loader) Load(name string) (*machine.Script, error) {
	path := l.Path(name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}
	defer f.Close()
	img, err := machine.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", path, err)
	}
	l.logger().Debug("artifact loaded", "path", path, "build", img.BuildID)
	return machine.NewScript(img), nil
}
