// Package main is the entry point of the SeasideVPN NetworkManager plugin.
//
// Started without CLI flags it runs the VPN service plugin NetworkManager
// talks to over D-Bus: it loads the seaside engine module on demand, runs
// one session at a time and reports the tunnel configuration back.
//
// Usage:
//
//	seaside-nm [options]
//
// Environment:
//
//	The engine module (libseaside.so by default) must be on the dynamic
//	loader search path. SEASIDE_* variables override configuration values.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yllada/seaside-nm/cli"
	"github.com/yllada/seaside-nm/common"
	"github.com/yllada/seaside-nm/config"
	"github.com/yllada/seaside-nm/engine"
	"github.com/yllada/seaside-nm/events"
	"github.com/yllada/seaside-nm/journal"
	"github.com/yllada/seaside-nm/nmplugin"
	"github.com/yllada/seaside-nm/vpn"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

// shutdownTimeout bounds the teardown of an active session on exit.
const shutdownTimeout = 10 * time.Second

var (
	configPath  = flag.String("config", "", "Configuration file")
	showVersion = flag.Bool("version", false, "Show version and exit")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
	showHelp    = flag.Bool("help", false, "Show help message")

	// CLI flags
	listProfiles     = flag.Bool("list", false, "List profiles")
	addProfile       = flag.String("add", "", "Add a profile with this name")
	removeProfile    = flag.String("remove", "", "Remove a profile by name or ID")
	protocol         = flag.String("protocol", "", "Protocol for -add")
	certificate      = flag.String("certificate", "", "Base64 certificate, or a path with -certifile, for -add")
	certifile        = flag.Bool("certifile", false, "Treat -certificate as a file path")
	storeCertificate = flag.String("store-certificate", "", "Read a certificate from stdin into the keyring for a profile")
	connectProfile   = flag.String("connect", "", "Run a session for a profile in the foreground")
	showHistory      = flag.Bool("history", false, "Show recent sessions")
	showStatus       = flag.Bool("status", false, "Show plugin service status")
)

func main() {
	flag.Parse()

	if *showHelp {
		cli.PrintHelp()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("seaside-nm v%s\n", appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logConfig := cfg.LoggerConfig()
	if *verbose {
		logConfig.Level = common.LevelDebug
	}
	if err := common.InitLogger(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	if isCLIMode() {
		if err := runCLI(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			common.CloseLogger()
			os.Exit(1)
		}
		return
	}

	common.LogInfo("Starting %s v%s", common.AppName, appVersion)
	if err := runService(ctx, cfg); err != nil {
		common.LogError("Service: %v", err)
		common.CloseLogger()
		os.Exit(1)
	}
}

func isCLIMode() bool {
	return *listProfiles || *addProfile != "" || *removeProfile != "" || *storeCertificate != "" ||
		*connectProfile != "" || *showHistory || *showStatus
}

// runCLI handles command-line interface operations.
func runCLI(ctx context.Context, cfg *config.Config) error {
	app, err := cli.New(cfg)
	if err != nil {
		return err
	}

	switch {
	case *listProfiles:
		return app.ListProfiles()
	case *addProfile != "":
		return app.AddProfile(&vpn.Profile{
			Name:            *addProfile,
			Certificate:     *certificate,
			CertificateFile: *certifile,
			Protocol:        *protocol,
		})
	case *removeProfile != "":
		return app.RemoveProfile(*removeProfile)
	case *storeCertificate != "":
		return app.StoreCertificate(*storeCertificate)
	case *connectProfile != "":
		return app.Connect(ctx, *connectProfile)
	case *showHistory:
		return app.History()
	case *showStatus:
		return app.Status()
	}
	return nil
}

// runService serves the plugin until ctx is cancelled or the service goes
// idle, then tears down any active session.
func runService(ctx context.Context, cfg *config.Config) error {
	conn, err := nmplugin.ConnectBus(cfg.DBus.Bus)
	if err != nil {
		return fmt.Errorf("connect to %s bus: %w", cfg.DBus.Bus, err)
	}
	defer conn.Close()

	loop := events.NewLoop(cfg.Events.QueueSize, cfg.Events.HandoffTimeout)
	svc := nmplugin.NewService(ctx, loop, conn, cfg.DBus.IdleQuit)
	module := engine.NewModule(cfg.Engine.Module)
	ctrl := vpn.NewController(module, loop, svc)
	svc.Bind(ctrl)
	common.LogDebug("Service: engine module %s", module.Name())

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			common.LogWarn("Service: session journal unavailable: %v", err)
		} else {
			defer j.Close()
			ctrl.SetJournal(j)
			if n, err := j.Retain(cfg.Journal.Retention, time.Now()); err != nil {
				common.LogWarn("Service: prune session journal: %v", err)
			} else if n > 0 {
				common.LogInfo("Service: pruned %d old sessions from the journal", n)
			}
		}
	}

	// The loop outlives ctx so the session can be torn down after a signal.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(loopCtx); err != nil && loopCtx.Err() == nil {
			common.LogError("Service: event loop stopped: %v", err)
		}
	}()

	if err := svc.Export(conn, cfg.DBus.ServiceName); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		common.LogInfo("Service: shutting down")
	case <-svc.Quit():
	}

	shutdownCtx, cancel := context.WithTimeout(loopCtx, shutdownTimeout)
	defer cancel()
	if err := loop.Do(shutdownCtx, ctrl.Disconnect); err != nil {
		common.LogWarn("Service: teardown: %v", err)
	}
	svc.Shutdown()

	// Late engine reports still get handled on this goroutine once Run is gone.
	stopLoop()
	<-loopDone
	if n := loop.Drain(); n > 0 {
		common.LogDebug("Service: ran %d tasks queued during shutdown", n)
	}
	loop.Close()
	common.LogDebug("Service: engine module %s loaded at exit: %t", module.Name(), module.Loaded())
	return nil
}

// setupSignalHandler configures graceful shutdown on SIGINT/SIGTERM.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()
}
