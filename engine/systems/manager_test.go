package systems

import (
	"runtime"
	"testing"
	"time"

	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/renderer/headless"
)

func TestFailedBuildStopsStartedSystems(t *testing.T) {
	before := runtime.NumGoroutine()

	cfg := core.DefaultConfig()
	cfg.Engine.Width = 0
	cfg.Jobs.CullWorkers = 8
	compiler := newTestCompiler(nil)
	sm, err := NewSystemManager(cfg, headless.New(), compiler)
	if err == nil {
		sm.Shutdown()
		t.Fatal("NewSystemManager with a zero width succeeded")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		after := runtime.NumGoroutine()
		if after <= before {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("goroutines after failed build:\nhave %d\nwant at most %d", after, before)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
