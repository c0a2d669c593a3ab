package cmd

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"roadnerd/internal/brainstorm"
	"roadnerd/internal/classify"
	"roadnerd/internal/config"
	"roadnerd/internal/judge"
	"roadnerd/internal/kb"
	"roadnerd/internal/llm"
	"roadnerd/internal/logger"
	"roadnerd/internal/pipeline"
	"roadnerd/internal/probe"
	"roadnerd/internal/prompt"
	"roadnerd/internal/runid"
	"roadnerd/internal/storage"
	"roadnerd/internal/sysinfo"
)

// systemInfoTTL bounds how often one process repeats the host and network
// checks.
const systemInfoTTL = 30 * time.Second

// app holds everything a command needs. Close releases the database.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	gateway *llm.Gateway
	service *pipeline.Service
	db      *sql.DB
	runLog  *logger.RunLog
	system  sysinfo.Provider
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newApp wires the pipeline. Run history is best effort: a log directory
// that cannot be written disables recording instead of failing the command.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	gw, err := llm.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}

	a := &app{cfg: cfg, log: log, gateway: gw, system: sysinfo.NewCached(sysinfo.Local{}, systemInfoTTL)}

	prompts := prompt.NewStore(cfg.Prompts.SearchDirs(), log)
	orch, err := brainstorm.New(gw, prompts, cfg.Brainstorm,
		brainstorm.WithSystemInfo(a.system),
		brainstorm.WithLogger(log))
	if err != nil {
		return nil, err
	}
	knowledge := kb.Default()
	if cfg.Knowledge.File != "" {
		if knowledge, err = kb.Load(cfg.Knowledge.File); err != nil {
			return nil, err
		}
	}
	ids, err := runid.New(cfg.NodeID)
	if err != nil {
		return nil, err
	}

	var sinks []pipeline.RunSink
	if rl, err := logger.NewRunLog(cfg.Log.Dir); err != nil {
		log.Warn("run log disabled", zap.Error(err))
	} else {
		a.runLog = rl
		sinks = append(sinks, rl)
	}
	if db, err := storage.Open(cfg.Log.Dir); err != nil {
		log.Warn("run history disabled", zap.Error(err))
	} else {
		a.db = db
		sinks = append(sinks, storage.NewRunStore(db))
	}

	a.service = pipeline.New(cfg, pipeline.Deps{
		Classifier: classify.New(
			classify.WithThreshold(cfg.Classifier.Threshold),
			classify.WithTopK(cfg.Classifier.TopK)),
		Knowledge:  knowledge,
		Brainstorm: orch,
		Prober:     probe.New(cfg.Probe, probe.WithLogger(log)),
		Judge:      judge.New(gw, prompts, log),
		IDs:        ids,
		Sinks:      sinks,
		Log:        log,
	})
	a.service.Bus().SubscribeAll(func(e pipeline.Event) {
		log.Debug("pipeline event",
			zap.String("type", string(e.Type)),
			zap.String("run_id", e.RunID),
			zap.String("stage", e.Stage),
			zap.String("detail", e.Detail))
	})
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.log.Sync()
}

// openHistory opens only the run database, for commands that never call
// the model.
func openHistory() (*sql.DB, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, config.Config{}, err
	}
	db, err := storage.Open(cfg.Log.Dir)
	if err != nil {
		return nil, cfg, err
	}
	return db, cfg, nil
}
