package rollcall

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/campuskit/faceroll/internal/camera"
	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/cpuspec"
	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/facerec"
	"github.com/campuskit/faceroll/internal/matcher"
	"github.com/campuskit/faceroll/internal/observability"
	"github.com/campuskit/faceroll/internal/qrscan"
	"github.com/campuskit/faceroll/internal/roster"
	"github.com/campuskit/faceroll/internal/telemetry"
	"github.com/campuskit/faceroll/internal/webapi"
)

// sentryFlushTimeout bounds the final telemetry drain on shutdown.
const sentryFlushTimeout = 3 * time.Second

// Realtime assembles the attendance engine and runs it until a
// termination signal: database, face models, roster cache, shared
// camera, boot sessions, scheduler, integrations, and the operator web
// API.
func Realtime(settings *conf.Settings) error {
	// The system ID must exist before Sentry starts so reports can be
	// correlated across restarts.
	if configPaths, err := conf.GetDefaultConfigPaths(); err == nil {
		if id, err := telemetry.LoadOrCreateSystemID(configPaths[0]); err == nil {
			settings.SystemID = id
		}
	}
	if err := telemetry.InitSentry(settings); err != nil {
		return err
	}

	// OMP_NUM_THREADS has to be set before the dlib models load; the
	// OpenMP pool reads it once.
	printStartupBanner(settings)

	store := datastore.New(settings)
	if store == nil {
		return errors.Newf("no database output enabled, enable sqlite or mysql").
			Component(ComponentRollcall).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer closeStore(store)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return errors.New(err).
			Component(ComponentRollcall).
			Category(errors.CategoryConfiguration).
			Context("operation", "init_metrics").
			Build()
	}
	store.SetMetrics(metrics.Datastore)
	camera.SetMetrics(metrics.Camera)
	facerec.SetMetrics(metrics.Recognizer)

	recognizer, err := facerec.New(settings)
	if err != nil {
		return err
	}
	defer closeRecognizer(recognizer)

	people := roster.New(store, recognizer)
	people.SetMetrics(metrics.Datastore)

	hub := camera.NewFrameHub()
	source := camera.NewFrameSource(camera.ConfigFromSettings(settings), hub)

	// Root context for session lifecycles and the background warm.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go warmRoster(ctx, people)

	// quitChan signals all goroutines to stop; controlChan carries
	// operator actions from the web API into this loop.
	quitChan := make(chan struct{})
	controlChan := make(chan string, 10)

	fanout := NewFanout(ctx, settings, metrics)

	registry := NewRegistry(ctx, RegistryConfig{
		Settings:  settings,
		Feed:      source,
		Detector:  recognizer,
		Engine:    matcher.New(settings.Recognition.Tolerance),
		Source:    people,
		Ledger:    store,
		Scanner:   qrscan.New(),
		OnCreated: fanout.Created,
		Metrics:   metrics,
	})
	registry.StartFromSettings()

	scheduler := NewScheduler(registry, store, people, settings.Realtime.Interval)
	if err := scheduler.Start(); err != nil {
		getLogger().Error("failed to start scheduler", "error", err)
	}

	var wg sync.WaitGroup
	startTelemetryEndpoint(&wg, settings, metrics, quitChan)
	startWebServer(&wg, settings, store, registry, metrics, controlChan, quitChan)
	monitorCtrlC(quitChan)

	for {
		select {
		case <-quitChan:
			// Sessions first: stopping the last one releases the
			// capture device. Integrations drain after that, servers
			// and the store last.
			scheduler.Stop()
			registry.StopAll()
			fanout.Close()
			cancel()
			wg.Wait()
			telemetry.Flush(sentryFlushTimeout)
			return nil

		case sig := <-controlChan:
			switch sig {
			case webapi.SignalReloadRoster:
				getLogger().Info("roster reload requested")
				go scheduler.RefreshRoster()
			default:
				getLogger().Warn("unknown control signal", "signal", sig)
			}
		}
	}
}

// printStartupBanner reports host and CPU details on the console and
// sizes the descriptor thread pool.
func printStartupBanner(settings *conf.Settings) {
	info, err := host.Info()
	if err != nil {
		fmt.Printf("❌ Error retrieving host info: %v\n", err)
	} else {
		fmt.Printf("System details: %s %s %s\n", info.OS, info.Platform, info.PlatformVersion)
	}

	spec := cpuspec.GetCPUSpec()
	threads := spec.GetOptimalThreadCount()
	if spec.BrandName != "" {
		fmt.Printf("CPU: %s, using %d descriptor threads\n", spec.BrandName, threads)
	}
	if !cpuspec.HasAVX() {
		fmt.Println("⚠️  CPU lacks AVX support, descriptor computation will be slow")
	}
	if os.Getenv("OMP_NUM_THREADS") == "" {
		os.Setenv("OMP_NUM_THREADS", strconv.Itoa(threads))
	}

	fmt.Printf("Starting %s in realtime mode. Tolerance: %v, confirm: %d/%d, capture interval: %v\n",
		settings.Main.Name,
		settings.Recognition.Tolerance,
		settings.Recognition.Confirm.Single,
		settings.Recognition.Confirm.Population,
		settings.Camera.CaptureInterval)
}

// warmRoster derives every missing descriptor once at startup so the
// first session does not pay the dlib cost per person.
func warmRoster(ctx context.Context, people *roster.Store) {
	warmCtx, cancel := context.WithTimeout(ctx, warmTimeout)
	defer cancel()

	stats, err := people.Warm(warmCtx, nil)
	if err != nil {
		getLogger().Error("roster warm failed", "error", err)
		return
	}
	getLogger().Info("roster warmed",
		"total", stats.Total,
		"ready", stats.Ready,
		"skipped", stats.Skipped)
}

// startTelemetryEndpoint starts the Prometheus endpoint when enabled.
func startTelemetryEndpoint(wg *sync.WaitGroup, settings *conf.Settings, metrics *observability.Metrics, quitChan chan struct{}) {
	if !settings.Realtime.Telemetry.Enabled {
		return
	}
	endpoint, err := observability.NewEndpoint(settings, metrics)
	if err != nil {
		getLogger().Error("failed to initialize telemetry endpoint", "error", err)
		return
	}
	endpoint.Start(wg, quitChan)
}

// startWebServer starts the operator web API when enabled.
func startWebServer(wg *sync.WaitGroup, settings *conf.Settings, store datastore.Interface,
	registry *Registry, metrics *observability.Metrics, controlChan chan string, quitChan chan struct{}) {
	if !settings.WebServer.Enabled {
		return
	}
	webapi.New(settings, store, registry, metrics, controlChan).Start(wg, quitChan)
}

// monitorCtrlC listens for SIGINT and triggers the shutdown sequence.
func monitorCtrlC(quitChan chan struct{}) {
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT)

		<-sigChan

		fmt.Println("\nReceived Ctrl+C, shutting down")
		close(quitChan)
	}()
}

// closeStore closes the database connection and logs the result.
func closeStore(store datastore.Interface) {
	if err := store.Close(); err != nil {
		getLogger().Error("failed to close database", "error", err)
	} else {
		getLogger().Info("database closed")
	}
}

// closeRecognizer releases the dlib handles.
func closeRecognizer(recognizer *facerec.Recognizer) {
	if err := recognizer.Close(); err != nil {
		getLogger().Error("failed to close recognizer", "error", err)
	}
}
