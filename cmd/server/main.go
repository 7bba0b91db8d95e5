package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"monumentwars/internal/catalogs"
	"monumentwars/internal/config"
	"monumentwars/internal/match"
	"monumentwars/internal/match/bus"
	"monumentwars/internal/match/dtm"
	"monumentwars/internal/match/mapinfo"
	"monumentwars/internal/persistence/indexdb"
	persistlog "monumentwars/internal/persistence/log"
	"monumentwars/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/server.yaml", "server config path (empty for defaults + env)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	var cats *catalogs.Catalogs
	if cfg.BlocksPath != "" {
		cats, err = catalogs.LoadFile(cfg.BlocksPath)
		if err != nil {
			logger.Fatalf("load catalogs: %v", err)
		}
	}

	info, err := mapinfo.LoadFile(cfg.MapPath)
	if err != nil {
		logger.Fatalf("load map: %v", err)
	}

	_ = os.MkdirAll(cfg.DataDir, 0o755)

	var idx *indexdb.SQLiteIndex
	if !cfg.DisableDB {
		idx, err = indexdb.OpenSQLite(cfg.DBPath)
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats); err != nil {
			logger.Printf("index catalogs: %v", err)
		}
	}

	trail := persistlog.NewMatchLogger(cfg.DataDir)
	defer trail.Close()

	recorders := []match.Recorder{trail}
	if idx != nil {
		recorders = append(recorders, idx)
	}

	wsLogger := log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)
	viewers := ws.NewServer(nil, wsLogger, cfg.ViewerQueue)

	m, err := match.New(match.Options{
		Map:             info,
		Logger:          log.New(os.Stdout, "[match] ", log.LstdFlags|log.Lmicroseconds),
		Effects:         viewers,
		Boards:          viewers,
		ScoreboardTitle: cfg.ScoreboardTitle,
		Recorders:       recorders,
	})
	if err != nil {
		logger.Fatalf("new match: %v", err)
	}

	section, ok := info.Section(dtm.Section)
	if !ok {
		logger.Fatalf("map %s: %v", info.Name, dtm.ErrNoSection)
	}
	deps := dtm.DepsFromMatch(m)
	if cats != nil {
		deps.Materials = cats
	}
	deps.SoundRadius = cfg.SoundRadius
	deps.Logger = log.New(os.Stdout, "[dtm] ", log.LstdFlags|log.Lmicroseconds)
	controller := dtm.New(deps, section)
	m.AddModule(controller)

	m.Bus.Subscribe(match.TopicEnd, func(ev bus.Event) {
		if e, ok := ev.(match.EndEvent); ok {
			viewers.MatchEnded(e)
		}
	})

	if err := m.Load(); err != nil {
		logger.Fatalf("load match: %v", err)
	}
	logger.Printf("match %s loaded: map=%q monuments=%d", m.ID(), info.Name, len(controller.Monuments()))

	rt := match.NewRuntime(m)
	viewers.SetRuntime(rt)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := rt.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("match stopped: %v", err)
		}
	}()

	mux := newMux(serverState{
		rt:        rt,
		dtm:       controller,
		viewers:   viewers,
		index:     idx,
		adminHTTP: cfg.AdminHTTP,
	})
	if !cfg.AdminHTTP {
		logger.Printf("admin endpoints disabled (MW_ADMIN_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}

	rt.Stop()
	<-rt.Done()
	if idx != nil {
		s := idx.Stats()
		logger.Printf("index: written=%d dropped=%d", s.WrittenTotal, s.DropTotal)
	}
}
