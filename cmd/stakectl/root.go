package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"stakingcore/config"
	"stakingcore/core"
	"stakingcore/core/events"
	"stakingcore/integrations/webhooks"
	"stakingcore/observability/logging"
	"stakingcore/observability/metrics"
	"stakingcore/storage"
	"stakingcore/storage/archive"
)

const serviceName = "stakectl"

// app carries state shared by every subcommand.
type app struct {
	cfgPath string
	output  string
	now     int64

	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Operate a staking rewards node",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgPath, "config", "c", "stake-config.toml", "path to the node configuration")
	flags.StringVarP(&a.output, "output", "o", "auto", "output format: auto, json or table")
	flags.Int64Var(&a.now, "now", 0, "override the current unix time (testing and replays)")
	_ = flags.MarkHidden("now")

	root.AddCommand(
		a.keygenCmd(),
		a.initCmd(),
		a.fundCmd(),
		a.stakeCmd(),
		a.unstakeCmd(),
		a.accountCmd(),
		a.positionsCmd(),
		a.previewCmd(),
		a.exportCmd(),
		a.archiveCmd(),
		a.tokenCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.Setup(serviceName, cfg.Environment, logging.Options{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Output:     a.stderr,
	})
	return nil
}

func (a *app) clock() int64 {
	if a.now != 0 {
		return a.now
	}
	return time.Now().Unix()
}

// runtime bundles the node and the event sinks opened for one command.
type runtime struct {
	node     *core.Node
	archive  *archive.Archive
	webhooks *webhooks.Dispatcher
	emitters events.MultiEmitter
}

func (r *runtime) Close() {
	if r.webhooks != nil {
		r.webhooks.Close()
	}
	if r.node != nil {
		r.node.Close()
	}
	if r.archive != nil {
		_ = r.archive.Close()
	}
}

// openRuntime opens the state database and wires the configured event sinks.
// Extra emitters are appended after the archive and webhook sinks.
func (a *app) openRuntime(extra ...events.Emitter) (*runtime, error) {
	admin, err := a.cfg.AdminAddress()
	if err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(a.cfg.DataDir, "state"))
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	rt := &runtime{node: core.NewNode(db, admin)}
	if a.cfg.ArchiveDSN != "" {
		rt.archive, err = archive.Open(a.cfg.ArchiveDSN, a.logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.emitters = append(rt.emitters, rt.archive)
	}
	if a.cfg.Webhook.URL != "" {
		rt.webhooks, err = webhooks.NewDispatcher(a.cfg.Webhook.URL, []byte(a.cfg.Webhook.Secret),
			webhooks.WithEventTypes(a.cfg.Webhook.Events...),
			webhooks.WithLogger(a.logger),
		)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.emitters = append(rt.emitters, rt.webhooks)
	}
	rt.emitters = append(rt.emitters, extra...)
	rt.emitters = append(rt.emitters, &eventLogger{logger: a.logger})
	rt.node.SetEmitter(rt.emitters)
	rt.node.SetMetrics(metrics.Staking())
	rt.node.SetNowFunc(a.clock)
	return rt, nil
}

// eventLogger writes every committed event to the structured log.
type eventLogger struct {
	logger *slog.Logger
}

func (l *eventLogger) Emit(evt events.Event) {
	payload := evt.Event()
	if payload == nil {
		return
	}
	args := make([]any, 0, 2*len(payload.Attributes)+2)
	args = append(args, "type", payload.Type)
	for key, value := range payload.Attributes {
		args = append(args, key, value)
	}
	l.logger.Info("staking event", args...)
}
