// Command panemux opens a project workspace: a tree of terminal panes
// multiplexed over local PTY sessions, with drag-to-rearrange splits and
// persistent layouts.
//
// Usage:
//
//	panemux [options] [project]        open a project workspace (TUI)
//	panemux list                       list saved projects
//	panemux web [options]              serve the browser UI standalone
//	panemux version                    print the version
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/panemux/panemux/internal/config"
	"github.com/panemux/panemux/internal/gateway"
	"github.com/panemux/panemux/internal/history"
	"github.com/panemux/panemux/internal/store"
	"github.com/panemux/panemux/internal/tui"
	"github.com/panemux/panemux/internal/web"
	"github.com/panemux/panemux/internal/workspace"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config.toml")
	dataDir := flag.String("data-dir", "", "Override data directory")
	flag.Usage = usage
	flag.Parse()

	cfg := config.Load(*configPath)
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	args := flag.Args()
	command := ""
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "version":
		fmt.Printf("panemux %s\n", Version)
	case "list":
		if err := runList(cfg, args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "web":
		if err := runWeb(cfg, args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		projectName := command
		if err := runWorkspace(cfg, projectName); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func usage() {
	fmt.Println("Usage: panemux [options] [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  [project]   open the named project workspace (default project when omitted)")
	fmt.Println("  list        list saved projects")
	fmt.Println("  web         serve the browser UI without a TUI")
	fmt.Println("  version     print the version")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
}

// setupLogging sends the standard logger to a rotated file so log lines
// never corrupt the TUI's alternate screen.
func setupLogging(cfg *config.Config) {
	log.SetOutput(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.DataDir, "logs", "panemux.log"),
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
	})
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// runWorkspace opens the TUI for one project, creating it on first use.
func runWorkspace(cfg *config.Config, projectName string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("panemux needs an interactive terminal (try 'panemux web' for headless use)")
	}
	setupLogging(cfg)

	projects, err := store.NewProjectStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open project store: %w", err)
	}

	ctx := context.Background()
	hist, err := history.Open(ctx, filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		return fmt.Errorf("open command history: %w", err)
	}
	defer hist.Close()

	if n, err := hist.Prune(ctx, 30*24*time.Hour); err != nil {
		log.Printf("[MAIN] prune history: %v", err)
	} else if n > 0 {
		log.Printf("[MAIN] pruned %d old history entries", n)
	}

	project, err := findOrCreateProject(projects, projectName)
	if err != nil {
		return err
	}

	gw := gateway.NewLocal(cfg.Shell)
	ws := workspace.New(project, gw, workspace.Options{
		Projects:     projects,
		History:      hist,
		RestartDelay: cfg.RestartDelayDuration(),
		Scrollback:   cfg.Terminal.ScrollbackKB * 1024,
	})

	// Sibling windows rewriting the same project trigger a reload.
	watcher, err := store.NewWatcher(projects, func(projectID int) {
		if projectID != project.ID {
			return
		}
		if err := ws.Reload(); err != nil {
			log.Printf("[MAIN] reload project %d: %v", projectID, err)
		}
	})
	if err != nil {
		log.Printf("[MAIN] project watcher unavailable: %v", err)
	} else {
		go watcher.Start()
		defer watcher.Close()
	}

	program := tea.NewProgram(
		tui.New(ws, cfg.Terminal.EdgeThreshold),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	)

	g, gctx := errgroup.WithContext(ctx)

	var srv *web.Server
	if cfg.Web.Enabled {
		srv = web.NewServer(web.Config{
			ListenAddr: cfg.Web.Listen,
			Projects:   projects,
			Host:       ws,
		})
		g.Go(srv.Start)
		log.Printf("[MAIN] web attach on http://%s", cfg.Web.Listen)
	}

	g.Go(func() error {
		defer func() {
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(gctx, 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}
		}()
		_, err := program.Run()
		return err
	})

	return g.Wait()
}

// findOrCreateProject resolves a project by name: exact match first, then
// an unambiguous fuzzy match ("pnmux" opens "panemux"), creating an empty
// project only when neither resolves. An empty name means the default
// project.
func findOrCreateProject(projects *store.ProjectStore, name string) (*store.Project, error) {
	if name == "" {
		name = "default"
	}

	existing, err := projects.List()
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	for _, p := range existing {
		if p.Name == name {
			return p, nil
		}
	}

	names := make([]string, len(existing))
	for i, p := range existing {
		names[i] = p.Name
	}
	if matches := fuzzy.Find(name, names); len(matches) == 1 {
		match := existing[matches[0].Index]
		fmt.Printf("Opening %q (matched %q)\n", match.Name, name)
		return match, nil
	}

	project := &store.Project{Name: name}
	if err := projects.Save(project); err != nil {
		return nil, fmt.Errorf("create project %q: %w", name, err)
	}
	return project, nil
}

// runList prints the saved projects, fuzzy-filtered by name when a
// pattern is given.
func runList(cfg *config.Config, args []string) error {
	projects, err := store.NewProjectStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open project store: %w", err)
	}
	list, err := projects.List()
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	if len(args) > 0 {
		list = filterProjects(list, args[0])
	}
	if len(list) == 0 {
		fmt.Println("No projects yet. Run 'panemux <name>' to create one.")
		return nil
	}
	for _, p := range list {
		fmt.Printf("%-3d %-24s %d panes  updated %s\n",
			p.ID, p.Name, len(p.Commands), p.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// filterProjects keeps projects whose name fuzzy-matches the pattern,
// best match first.
func filterProjects(list []*store.Project, pattern string) []*store.Project {
	names := make([]string, len(list))
	for i, p := range list {
		names[i] = p.Name
	}
	matches := fuzzy.Find(pattern, names)
	out := make([]*store.Project, 0, len(matches))
	for _, m := range matches {
		out = append(out, list[m.Index])
	}
	return out
}

// runWeb serves the browser UI standalone with no TUI attached. Pane
// websockets require an open workspace, so this surface is the project
// API plus health until a TUI window also runs with web enabled.
func runWeb(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("web", flag.ExitOnError)
	listenAddr := fs.String("listen", cfg.Web.Listen, "Listen address for web server")
	readOnly := fs.Bool("read-only", false, "Run in read-only mode (input disabled)")
	token := fs.String("token", "", "Bearer token for API/WS access")
	if err := fs.Parse(args); err != nil {
		return err
	}

	setupLogging(cfg)

	projects, err := store.NewProjectStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open project store: %w", err)
	}

	mode := "read-write"
	if *readOnly {
		mode = "read-only"
	}
	fmt.Printf("Starting panemux web on http://%s\n", *listenAddr)
	fmt.Printf("Mode: %s\n", mode)
	if *token != "" {
		fmt.Println("Auth: bearer token enabled")
	}
	fmt.Println("Press Ctrl+C to stop.")

	server := web.NewServer(web.Config{
		ListenAddr: *listenAddr,
		ReadOnly:   *readOnly,
		AuthToken:  *token,
		Projects:   projects,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("web server failed: %w", err)
	case <-sigCh:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: web server shutdown error: %v\n", err)
	}
	return nil
}
