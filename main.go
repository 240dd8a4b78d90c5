/*
This is an example of application that will use the
engine package to drive frames on the headless device
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/frameforge/engine"
	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/renderer/headless"
	"github.com/spaghettifunk/frameforge/testbed"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	watch := flag.Bool("watch", false, "reload the configuration file when it changes")
	frames := flag.Uint64("frames", 0, "stop after this many frames (overrides the configuration)")
	flag.Parse()

	cfg := core.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = core.LoadConfig(*configPath); err != nil {
			core.LogFatal("%s", err)
		}
	}
	if *frames > 0 {
		cfg.Engine.MaxFrames = *frames
	}
	if err := core.SetLogLevel(cfg.Engine.LogLevel); err != nil {
		core.LogFatal("%s", err)
	}

	tb, err := testbed.NewTestGame()
	if err != nil {
		core.LogFatal("%s", err)
	}

	device := headless.New()
	device.SetPassHistory(16)
	e, err := engine.New(tb.Game, cfg, device, nil)
	if err != nil {
		core.LogFatal("%s", err)
	}
	defer func() {
		if err := e.Shutdown(); err != nil {
			core.LogError("%s", err)
		}
	}()

	if err := e.Initialize(); err != nil {
		core.LogError("%s", err)
		return
	}

	if *watch && *configPath != "" {
		watcher, err := core.NewConfigWatcher(*configPath)
		if err != nil {
			core.LogError("config watcher disabled: %s", err)
		} else {
			defer watcher.Close()
			e.WatchConfig(watcher.Updates())
		}
	}

	// cancel the run on sigterm and other system calls
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := e.Run(ctx); err != nil {
		core.LogError("engine stopped: %s", err)
		return
	}

	m := e.Metrics()
	last := m.Last()
	stats := device.Stats()
	core.LogInfo("%d frames, %.2f ms avg, last frame %d draw calls / %d instances, %d render targets created, %d shader modules",
		m.TotalFrames(), m.FrameTime(), last.DrawCalls, last.Instances, stats.TargetsCreated, stats.ShaderModules)
}
