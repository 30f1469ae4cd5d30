package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"camerafeed/internal/capture"
	"camerafeed/internal/config"
	"camerafeed/internal/domain"
	"camerafeed/internal/logging"
	"camerafeed/internal/peer"
	"camerafeed/internal/procstate"
	"camerafeed/internal/signaling"
)

const statusInterval = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "config file path")
	logDir := flag.String("log-dir", "./logs", "directory for log files")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Usage = printUsage
	flag.Parse()

	if err := logging.Init(*logDir, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "camerafeed: %v\n", err)
		return 1
	}
	log := logging.Component("main")

	log.Infof("camerafeed starting")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("load config: %v", err)
		return 1
	}

	sources := make([]*capture.Source, 0, len(cfg.Cameras))
	frameSources := make([]domain.FrameSource, 0, len(cfg.Cameras))
	for _, desc := range cfg.Descriptors() {
		src := capture.New(desc)
		sources = append(sources, src)
		frameSources = append(frameSources, src)
	}

	started := 0
	for _, src := range sources {
		if src.Start() {
			started++
		} else {
			log.Errorf("camera %s failed to start", src.ID())
		}
	}
	if started == 0 {
		log.Errorf("no cameras started successfully")
		return 1
	}

	manager := peer.NewManager(frameSources, cfg.WebRTC.STUNServer, cfg.WebRTC.MTU, cfg.WebRTC.MaxClients)

	cameraInfos := make([]domain.CameraInfo, 0, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		cameraInfos = append(cameraInfos, domain.CameraInfo{
			ID: cam.ID, Name: cam.Name, Width: cam.Width, Height: cam.Height, FPS: cam.FPS,
		})
	}

	server := signaling.New(manager, cameraInfos, cfg.WebRTC.MaxClients)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Bind, cfg.Server.Port),
		Handler: http.HandlerFunc(server.ServeHTTP),
	}

	go func() {
		log.Infof("signaling listening on ws://%s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("signaling server: %v", err)
		}
	}()

	log.Infof("server running: %d/%d cameras active, max_clients=%d", started, len(sources), cfg.WebRTC.MaxClients)

	runner := procstate.New()
	statusLoop(runner, sources, manager, log)

	log.Infof("shutting down")

	done := make(chan struct{})
	go func() {
		for _, src := range sources {
			src.Stop()
		}
		server.Close()
		_ = httpServer.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(procstate.GracefulWindow):
		log.Errorf("shutdown exceeded %s, forcing exit", procstate.GracefulWindow)
		os.Exit(1)
	}

	runner.Close()

	log.Infof("camerafeed stopped")
	return 0
}

func statusLoop(runner *procstate.Runner, sources []*capture.Source, manager *peer.Manager, log *logging.Logger) {
	lastLog := time.Now()
	for runner.Running() {
		time.Sleep(100 * time.Millisecond)

		if time.Since(lastLog) < statusInterval {
			continue
		}
		lastLog = time.Now()

		active := 0
		for _, src := range sources {
			if src.Stats().Running {
				active++
			}
		}
		log.Infof("status: cameras %d/%d active, clients %d", active, len(sources), manager.PeerCount())
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `camerafeed - WebRTC camera streaming server

Usage: camerafeed [options]

Options:
  -config <path>    config file path (default: config.yaml)
  -log-dir <path>   directory for log files (default: ./logs)
  -verbose          enable debug logging
  -help             show this help
`)
}
