package runtime

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/0xa1bed0/imgship/internal/logs"
)

// Runtime owns the process lifecycle: the root context, cancelled on
// SIGINT/SIGTERM, and the exit path.
type Runtime struct {
	runID string

	ctx        context.Context
	cancelFunc context.CancelFunc

	exit func(code int)
}

func New() *Runtime {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return &Runtime{
		runID:      strconv.FormatInt(time.Now().Unix(), 10),
		ctx:        ctx,
		cancelFunc: cancel,
		exit:       os.Exit,
	}
}

func (rt *Runtime) Ctx() context.Context {
	return rt.ctx
}

func (rt *Runtime) RunID() string {
	return rt.runID
}

func (rt *Runtime) CancelCtx() {
	rt.cancelFunc()
}

// Finalize handles both panic and normal exit.
// Call it in a defer at the top of main.
func (rt *Runtime) Finalize(appName string, execErr *error) {
	if r := recover(); r != nil {
		rt.CancelCtx()
		logs.Fail(fmt.Sprintf("%s panic: %v", appName, r))
		fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
		logs.Close()
		rt.exit(1)
		return
	}

	rt.CancelCtx()

	if execErr != nil && *execErr != nil {
		logs.Fail(fmt.Sprintf("%s: %v", appName, *execErr))
		logs.Close()
		rt.exit(1)
		return
	}

	logs.Close()
}
