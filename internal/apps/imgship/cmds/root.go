package imgship

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xa1bed0/imgship/internal/apps/imgship/config"
	"github.com/0xa1bed0/imgship/internal/cache"
	"github.com/0xa1bed0/imgship/internal/logs"
	"github.com/0xa1bed0/imgship/internal/runtime"
	"github.com/0xa1bed0/imgship/internal/state"
	"github.com/0xa1bed0/imgship/internal/ui"
	"github.com/spf13/cobra"
)

var verbosity int

// app carries what every command needs once flags are parsed.
type app struct {
	rt      *runtime.Runtime
	environ []string
	flags   configFlags
	cfg     config.Config
}

// configFlags mirror the environment inputs. A flag only wins when it was
// set on the command line.
type configFlags struct {
	image        string
	platforms    string
	token        string
	buildFor     string
	mainBranches string
	cacheDir     string
	workspace    string
	ref          string
	stateDB      string
	workflowFile string
	logFile      string
}

func Execute(rt *runtime.Runtime, environ []string) error {
	a := &app{rt: rt, environ: environ}
	return newRootCmd(a).ExecuteContext(rt.Ctx())
}

func newRootCmd(a *app) *cobra.Command {
	build := &buildOptions{}

	rootCmd := &cobra.Command{
		Use:   "imgship",
		Short: "Build and publish a project's container images from CI",
		Long: `imgship builds the setup image (Dockerfile.setup) when the files that
define it changed, then always builds the main image (Dockerfile).
The main image is pushed only from main branches.

By default, 'imgship' is equivalent to 'imgship build'.
Inputs come from the GitHub Actions environment; flags override them.`,
		Args: cobra.NoArgs,
		// Default behavior is the same as 'build'
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(cmd.Context(), build)
		},

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logs.SetDebugVerbosity(verbosity)
			return a.loadConfig(cmd)
		},
		// we will handle that
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity level")
	a.attachConfigFlags(rootCmd)

	// Root should accept the same flags as `build`
	attachBuildFlags(rootCmd, build)

	rootCmd.AddCommand(a.newBuildCmd())
	rootCmd.AddCommand(a.newHashCmd())
	rootCmd.AddCommand(a.newCacheCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (a *app) attachConfigFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&a.flags.image, "image", "", "image name, e.g. ghcr.io/acme/app (INPUT_IMAGE)")
	f.StringVar(&a.flags.platforms, "platforms", "", "comma separated target platforms (INPUT_PLATFORMS)")
	f.StringVar(&a.flags.token, "github-token", "", "token mounted as the GIT_AUTH_TOKEN build secret (INPUT_GITHUB-TOKEN)")
	f.StringVar(&a.flags.buildFor, "build-for", "", "build target qualifier (INPUT_BUILD-FOR, default \"any\")")
	f.StringVar(&a.flags.mainBranches, "main-branches", "", "comma separated branches whose main image is pushed (INPUT_MAIN-BRANCHES)")
	f.StringVar(&a.flags.cacheDir, "cache-dir", "", "buildx local layer cache directory (INPUT_CACHE-DIR)")
	f.StringVar(&a.flags.workspace, "workspace", "", "repository checkout (GITHUB_WORKSPACE, default: current directory)")
	f.StringVar(&a.flags.ref, "ref", "", "source ref the branch tag is derived from (GITHUB_REF)")
	f.StringVar(&a.flags.stateDB, "state-db", "", "change cache database (IMGSHIP_STATE_DB)")
	f.StringVar(&a.flags.workflowFile, "workflow-file", "", "workflow file tracked with Dockerfile.setup (IMGSHIP_WORKFLOW_FILE)")
	f.StringVar(&a.flags.logFile, "log-file", "", "also write a full, timestamped log here (IMGSHIP_LOG_FILE)")
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	str := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	list := func(name string, dst *[]string, v string) {
		if fs.Changed(name) {
			*dst = strings.Split(v, ",")
		}
	}

	str("image", &cfg.Image, a.flags.image)
	list("platforms", &cfg.Platforms, a.flags.platforms)
	str("github-token", &cfg.Token, a.flags.token)
	str("build-for", &cfg.BuildFor, a.flags.buildFor)
	list("main-branches", &cfg.MainBranches, a.flags.mainBranches)
	str("cache-dir", &cfg.CacheDir, a.flags.cacheDir)
	str("workspace", &cfg.Workspace, a.flags.workspace)
	str("ref", &cfg.Ref, a.flags.ref)
	str("state-db", &cfg.StateDB, a.flags.stateDB)
	str("workflow-file", &cfg.WorkflowFile, a.flags.workflowFile)
	str("log-file", &cfg.LogFile, a.flags.logFile)
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(a.environ)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, &cfg)
	if err := cfg.Finalize(); err != nil {
		return err
	}

	logs.SetWorkflowCommands(cfg.GitHubActions)
	if cfg.LogFile != "" {
		w, err := ui.OpenFullLog(cfg.LogFile)
		if err != nil {
			logs.Warnf("can't open log file: %v", err)
		} else {
			logs.SetFullLogWriter(w)
		}
	}

	logs.Debugf("run %s config: %s", a.rt.RunID(), cfg)
	a.cfg = cfg
	return nil
}

// openCache opens the change cache. The returned close func is always safe
// to call.
func (a *app) openCache(ctx context.Context) (*cache.Store, func(), error) {
	path, err := a.cfg.StateDBPath()
	if err != nil {
		return nil, func() {}, err
	}
	db, err := state.Open(ctx, state.Config{Path: path})
	if err != nil {
		return nil, func() {}, fmt.Errorf("change cache: %w", err)
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			logs.Warnf("close change cache: %v", err)
		}
	}

	kv, err := state.NewKVStore(ctx, db)
	if err != nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("change cache: %w", err)
	}
	store, err := cache.NewStore(kv)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return store, closeFn, nil
}
