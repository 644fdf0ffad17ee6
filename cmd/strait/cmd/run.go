package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-strait/strait/cmd/strait/internal/config"
	"github.com/go-strait/strait/pkg/host"
)

func init() {
	RegisterCommand(&Command{
		Name:  "run",
		Short: "Run a script bundle",
		Long: `Run a script bundle on the Strait runtime.

The target may be:
  (nothing)   Run the project in the current module (nearest go.mod)
  <dir>       Run the project rooted at <dir>
  <file.js>   Run a single bundle with no project around it

Project mode reads strait.yaml next to go.mod:

  app:
    name: Demo
    id: com.example.demo
    entry: app.js
  frame:
    fps: 60
  devtools:
    addr: "127.0.0.1:9223"

Flags:
  --devtools ADDR   Serve runtime introspection on ADDR (overrides strait.yaml)

The runtime stops on Ctrl+C or SIGTERM.`,
		Usage: "strait run [dir | bundle.js] [--devtools ADDR]",
		Run:   runRun,
	})
}

type runOptions struct {
	devtoolsAddr string
}

func runRun(args []string) error {
	targets, opts, err := parseRunArgs(args)
	if err != nil {
		return err
	}
	if len(targets) > 1 {
		return fmt.Errorf("run takes at most one target\n\nUsage: strait run [dir | bundle.js]")
	}

	var target string
	if len(targets) == 1 {
		target = targets[0]
	}
	cfg, err := resolveTarget(target)
	if err != nil {
		return err
	}
	if opts.devtoolsAddr != "" {
		cfg.DevtoolsAddr = opts.devtoolsAddr
	}

	h, err := host.New(host.Options{
		FrameInterval: cfg.FrameInterval,
		DevtoolsAddr:  cfg.DevtoolsAddr,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Running %s (%s)\n", cfg.AppName, cfg.AppID)
	fmt.Printf("  Bundle: %s\n", cfg.Entry)
	if cfg.DevtoolsAddr != "" {
		fmt.Printf("  Devtools: http://%s\n", cfg.DevtoolsAddr)
	}
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()

	if err := h.Run(ctx, cfg.Entry); err != nil {
		return fmt.Errorf("bundle failed: %w", err)
	}
	return nil
}

func parseRunArgs(args []string) ([]string, runOptions, error) {
	opts := runOptions{}
	targets := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--devtools":
			if i+1 >= len(args) {
				return nil, opts, fmt.Errorf("--devtools requires an address")
			}
			opts.devtoolsAddr = args[i+1]
			i++
		case strings.HasPrefix(arg, "--devtools="):
			opts.devtoolsAddr = strings.TrimPrefix(arg, "--devtools=")
		case strings.HasPrefix(arg, "--"):
			return nil, opts, fmt.Errorf("unknown flag %q", arg)
		default:
			targets = append(targets, arg)
		}
	}
	return targets, opts, nil
}

// resolveTarget maps the run argument onto a resolved project: no
// argument means the enclosing module, a .js path is a bare bundle,
// anything else must be a project directory.
func resolveTarget(target string) (*config.Resolved, error) {
	if target == "" {
		root, err := config.FindProjectRoot()
		if err != nil {
			return nil, err
		}
		return config.Resolve(root)
	}
	if strings.HasSuffix(target, ".js") {
		return config.ResolveBundle(target)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("target %q not found", target)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("target %q must be a project directory or a .js bundle", target)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, err
	}
	return config.Resolve(abs)
}
