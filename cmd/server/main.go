package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"tilecraft.dev/internal/persistence/indexdb"
	persistlog "tilecraft.dev/internal/persistence/log"
	"tilecraft.dev/internal/persistence/snapshot"
	"tilecraft.dev/internal/sim/catalogs"
	"tilecraft.dev/internal/sim/machine"
	"tilecraft.dev/internal/sim/tuning"
	"tilecraft.dev/internal/sim/world"
	"tilecraft.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite tick/audit index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	cats, rejected, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	rejectLog := persistlog.NewRejectLogger(worldDir)
	defer rejectLog.Close()
	for _, r := range rejected {
		logger.Printf("catalog reject: %v", r)
		_ = rejectLog.WriteReject(r.File, r.ID, r.Err.Error())
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	reg := machine.Builtin()

	// Fresh world or resume from snapshot.
	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	var w *world.World
	if snapshotToLoad != "" {
		snap, err := snapshot.Load(snapshotToLoad)
		if err != nil {
			logger.Fatalf("load snapshot %s: %v", snapshotToLoad, err)
		}
		w, err = world.NewFromSnapshot(snap, cats, reg, logger)
		if err != nil {
			logger.Fatalf("resume snapshot: %v", err)
		}
		logger.Printf("resumed %s at tick %d from %s", w.ID(), w.Tick(), snapshotToLoad)
	} else {
		tune, err := tuning.Load(tp)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		w = world.New(world.WorldConfig{
			ID:                 *worldID,
			TickRateHz:         tune.TickRateHz,
			MaxQueuePerTick:    tune.MaxQueuePerTick,
			SnapshotEveryTicks: tune.SnapshotEveryTicks,
			StarterItems:       tune.StarterItems,
		}, cats, reg, logger)
		logger.Printf("fresh world %s", w.ID())
	}

	tickLog := persistlog.NewTickLogger(worldDir)
	defer tickLog.Close()
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
	}

	snapDir := filepath.Join(worldDir, "snapshots")
	snapEvery := uint64(w.SnapshotEveryTicks())
	w.OnAudit(func(e world.AuditEntry) {
		if err := auditLog.WriteAudit(e); err != nil {
			logger.Printf("audit log: %v", err)
		}
		if idx != nil {
			idx.InsertAudit(e)
		}
	})
	w.OnTick(func(e world.TickLogEntry) {
		if err := tickLog.WriteTick(e); err != nil {
			logger.Printf("tick log: %v", err)
		}
		if idx != nil {
			idx.InsertTick(e)
		}
		if e.Tick > 0 && e.Tick%snapEvery == 0 {
			saveSnapshot(w, snapDir, idx, logger)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	wsServer := ws.NewServer(w, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsServer.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(rw, "ok tick=%d\n", w.Tick())
	})

	httpSrv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Printf("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	w.Stop()
	cancel()
	// Let the loop goroutine finish its tick before the final export.
	time.Sleep(time.Second / time.Duration(w.TickRateHz()))

	// Final snapshot so a restart resumes exactly here.
	saveSnapshot(w, snapDir, idx, logger)
}

func saveSnapshot(w *world.World, snapDir string, idx *indexdb.SQLiteIndex, logger *log.Logger) {
	s := w.ExportSnapshot()
	path := filepath.Join(snapDir, fmt.Sprintf("snap-%012d.snap.zst", s.Header.Tick))
	if err := snapshot.Save(path, s); err != nil {
		logger.Printf("save snapshot: %v", err)
		return
	}
	if idx != nil {
		idx.InsertSnapshot(indexdb.SnapshotRow{
			Tick:      s.Header.Tick,
			Path:      path,
			Tiles:     len(s.Instances),
			Queued:    len(s.Queue),
			Unlocked:  len(s.Unlocked),
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
	logger.Printf("snapshot tick %d -> %s", s.Header.Tick, path)
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}
