// Package config resolves a Strait project: the optional strait.yaml
// file layered over defaults derived from the project's go.mod.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the project configuration filename.
const ConfigFile = "strait.yaml"

// DefaultEntry is the bundle path used when strait.yaml does not name
// one.
const DefaultEntry = "app.js"

// maxFPS bounds frame.fps; past this the frame timer would spin
// instead of pacing anything.
const maxFPS = 240

// Config mirrors strait.yaml.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Frame    FrameConfig    `yaml:"frame"`
	Devtools DevtoolsConfig `yaml:"devtools"`
}

// AppConfig carries application metadata and the bundle entry point.
type AppConfig struct {
	Name  string `yaml:"name,omitempty"`
	ID    string `yaml:"id,omitempty"`
	Entry string `yaml:"entry,omitempty"`
}

// FrameConfig tunes the frame scheduler.
type FrameConfig struct {
	FPS int `yaml:"fps,omitempty"`
}

// DevtoolsConfig enables the runtime introspection server.
type DevtoolsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Resolved contains fully defaulted configuration values.
type Resolved struct {
	Root          string
	ModulePath    string
	AppName       string
	AppID         string
	Entry         string
	FrameInterval time.Duration
	DevtoolsAddr  string
}

// LoadOptional reads strait.yaml from dir if present. A missing file
// is an empty config, not an error.
func LoadOptional(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFile, err)
	}
	return &cfg, nil
}

// Resolve loads the project rooted at dir: go.mod supplies the module
// path, strait.yaml supplies overrides, and everything else defaults.
// The entry bundle must exist.
func Resolve(dir string) (*Resolved, error) {
	modPath, err := readModulePath(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(cfg.App.Name)
	if name == "" {
		name = defaultAppName(modPath, dir)
	}

	id := strings.TrimSpace(cfg.App.ID)
	if id == "" {
		id = defaultAppID(modPath, name)
	}
	if err := validateAppID(id); err != nil {
		return nil, err
	}

	entry := strings.TrimSpace(cfg.App.Entry)
	if entry == "" {
		entry = DefaultEntry
	}
	if !filepath.IsAbs(entry) {
		entry = filepath.Join(dir, entry)
	}
	if _, err := os.Stat(entry); err != nil {
		return nil, fmt.Errorf("bundle %s not found (set app.entry in %s): %w", entry, ConfigFile, err)
	}

	interval, err := frameInterval(cfg.Frame.FPS)
	if err != nil {
		return nil, err
	}

	return &Resolved{
		Root:          dir,
		ModulePath:    modPath,
		AppName:       name,
		AppID:         id,
		Entry:         entry,
		FrameInterval: interval,
		DevtoolsAddr:  strings.TrimSpace(cfg.Devtools.Addr),
	}, nil
}

// ResolveBundle configures a run for a single .js file with no
// project around it. The file's own name doubles as the app name.
func ResolveBundle(path string) (*Resolved, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("bundle %s not found: %w", abs, err)
	}

	name := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	if name == "" {
		name = "bundle"
	}
	return &Resolved{
		Root:    filepath.Dir(abs),
		AppName: name,
		AppID:   "com.example." + sanitizeSegment(name),
		Entry:   abs,
	}, nil
}

// FindProjectRoot walks up from the current directory to find go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Go module (no go.mod found)")
		}
		dir = parent
	}
}

func readModulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

func frameInterval(fps int) (time.Duration, error) {
	switch {
	case fps == 0:
		return 0, nil
	case fps < 0:
		return 0, fmt.Errorf("frame.fps must be positive (got %d)", fps)
	case fps > maxFPS:
		return 0, fmt.Errorf("frame.fps must be at most %d (got %d)", maxFPS, fps)
	}
	return time.Second / time.Duration(fps), nil
}

// defaultAppName is the last element of the module path, or the
// directory name when the module path gives nothing usable.
func defaultAppName(modPath, dir string) string {
	base, _, ok := module.SplitPathVersion(modPath)
	if ok {
		if i := strings.LastIndexByte(base, '/'); i >= 0 {
			base = base[i+1:]
		}
		if base != "" {
			return base
		}
	}
	if name := filepath.Base(dir); name != "." && name != string(filepath.Separator) {
		return name
	}
	return "strait_app"
}

// defaultAppID derives a reverse-domain identifier from the module
// path: github.com/acme/demo becomes com.github.acme.demo. Module
// paths without a dotted host fall back to com.example.<name>.
func defaultAppID(modPath, appName string) string {
	parts := strings.Split(modPath, "/")
	if len(parts) < 2 || !strings.Contains(parts[0], ".") {
		return "com.example." + sanitizeSegment(appName)
	}

	host := strings.Split(parts[0], ".")
	segments := make([]string, 0, len(host)+len(parts)-1)
	for i := len(host) - 1; i >= 0; i-- {
		segments = append(segments, host[i])
	}
	for _, p := range parts[1:] {
		if p != "" {
			segments = append(segments, p)
		}
	}
	for i, s := range segments {
		segments[i] = sanitizeSegment(s)
	}
	return strings.Join(segments, ".")
}

// sanitizeSegment lowercases a segment and strips everything outside
// [a-z0-9]. A leading digit gets an 'a' prefix so the segment stays a
// valid identifier.
func sanitizeSegment(segment string) string {
	var b strings.Builder
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}

	out := b.String()
	if out == "" {
		return "app"
	}
	if out[0] >= '0' && out[0] <= '9' {
		return "a" + out
	}
	return out
}

func validateAppID(id string) error {
	if !strings.Contains(id, ".") {
		return fmt.Errorf("app.id must contain at least one '.' (got %q)", id)
	}
	for _, segment := range strings.Split(id, ".") {
		if segment == "" {
			return fmt.Errorf("app.id contains an empty segment (%q)", id)
		}
		if segment[0] >= '0' && segment[0] <= '9' || segment[0] == '_' {
			return fmt.Errorf("app.id segment %q must start with a letter (%q)", segment, id)
		}
		for _, r := range segment {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				return fmt.Errorf("app.id contains invalid character %q (%q)", r, id)
			}
		}
	}
	return nil
}
