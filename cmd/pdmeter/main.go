// Command pdmeter runs the interpupillary-distance measurement engine
// against a local webcam and an external landmark detector service,
// serving live guidance on the dashboard and publishing results over
// MQTT when a broker is configured.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/optiscope/go-pdmeter/internal/config"
	"github.com/optiscope/go-pdmeter/internal/log"
	"github.com/optiscope/go-pdmeter/pkg/camera"
	"github.com/optiscope/go-pdmeter/pkg/engine"
	"github.com/optiscope/go-pdmeter/pkg/landmarks"
	"github.com/optiscope/go-pdmeter/pkg/metrology"
	"github.com/optiscope/go-pdmeter/pkg/telemetry"
	"github.com/optiscope/go-pdmeter/pkg/web"
)

func main() {
	configPath := flag.String("config", "pdmeter.yaml", "path to YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	cam, err := camera.Open(cfg.Camera)
	if err != nil {
		log.Error("camera open failed", "error", err)
		os.Exit(1)
	}
	defer cam.Close()

	provider, err := landmarks.NewClient(landmarks.ClientConfig{
		URL:              cfg.Provider.URL,
		Backends:         cfg.Provider.Backends,
		HandshakeTimeout: 10 * time.Second,
		RequestTimeout:   2 * time.Second,
	})
	if err != nil {
		log.Error("landmark service unavailable", "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	publisher, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		log.Error("telemetry connect failed", "error", err)
		os.Exit(1)
	}
	if publisher != nil {
		defer publisher.Close()
	}

	var server *web.Server

	onComplete := func(sessionID string, final metrology.Measurement, samples []metrology.Measurement) {
		log.Info("measurement complete",
			"session", sessionID,
			"ipd_mm", final.IPDMM,
			"left_pd_mm", final.LeftPDMM,
			"right_pd_mm", final.RightPDMM,
			"accuracy", final.Accuracy,
			"samples", len(samples))
		if server != nil {
			server.PublishResult(sessionID, final, len(samples))
		}
		if publisher != nil {
			if err := publisher.PublishResult(sessionID, final, len(samples)); err != nil {
				log.Warn("result publish failed", "error", err)
			}
			if err := publisher.PublishEvent(sessionID, "complete"); err != nil {
				log.Warn("event publish failed", "error", err)
			}
		}
	}

	onGuidance := func(snap engine.Snapshot) {
		if server != nil {
			server.PublishGuidance(snap)
		}
	}

	eng, err := engine.New(cfg.EngineConfig(), onComplete, onGuidance)
	if err != nil {
		log.Error("engine construction failed", "error", err)
		os.Exit(1)
	}

	server = web.NewServer(cfg.Web.Port, eng)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("dashboard stopped", "error", err)
		}
	}()
	defer server.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("pdmeter running",
		"camera", cfg.Camera.DeviceID,
		"provider", cfg.Provider.URL,
		"backend", provider.Backend(),
		"port", cfg.Web.Port)

	interval := time.Second / time.Duration(cfg.Camera.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return

		case <-ticker.C:
			img, jpeg, err := cam.Read()
			if err != nil {
				log.Warn("frame capture failed", "error", err)
				continue
			}

			res, err := provider.Detect(ctx, jpeg)
			if err != nil {
				log.Warn("landmark detection failed", "error", err)
				continue
			}

			if _, err := eng.Tick(time.Now(), res, img); err != nil {
				log.Debug("tick dropped", "error", err)
			}
		}
	}
}
