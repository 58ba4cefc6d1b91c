package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sightline-robotics/camtrack/internal/config"
	"github.com/sightline-robotics/camtrack/internal/log"
	"github.com/sightline-robotics/camtrack/internal/metrics"
	"github.com/sightline-robotics/camtrack/pkg/compass"
	"github.com/sightline-robotics/camtrack/pkg/extrapolate"
	"github.com/sightline-robotics/camtrack/pkg/geo"
	"github.com/sightline-robotics/camtrack/pkg/locate"
	"github.com/sightline-robotics/camtrack/pkg/web"
)

func main() {
	port := flag.Int("port", config.Port(config.DefaultPort), "TCP port for camera connections")
	httpPort := flag.Int("http-port", config.HTTPPort(config.DefaultHTTPPort), "HTTP port for the API and websocket streams")
	tick := flag.Duration("tick", config.TickInterval(config.DefaultTickInterval), "interval between position updates")
	horizon := flag.Duration("horizon", config.Horizon(config.DefaultHorizon), "how long to extrapolate past the last sighting (0 disables)")
	compassDev := flag.String("compass", config.CompassDevice(), "serial device of the compass (empty disables)")
	compassBaud := flag.Int("compass-baud", compass.DefaultBaudRate, "compass baud rate")
	compassInterval := flag.Duration("compass-interval", 200*time.Millisecond, "compass poll interval")
	compassOffset := flag.Float64("compass-offset", config.CompassOffsetDeg(0), "compass offset in degrees")
	flag.Parse()

	log.InitFromEnv()

	fmt.Println("📡 camtrack server")
	fmt.Printf("   cameras: :%d\n", *port)
	fmt.Printf("   http:    :%d\n", *httpPort)
	fmt.Println()

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		log.Error("metrics setup failed", "error", err)
		os.Exit(1)
	}

	var cmp compass.Compass
	if *compassDev != "" {
		cmp, err = compass.OpenSerial(*compassDev, uint(*compassBaud), *compassInterval, geo.Rad(*compassOffset))
		if err != nil {
			log.Error("compass setup failed", "device", *compassDev, "error", err)
			os.Exit(1)
		}
		log.Info("compass enabled", "device", *compassDev, "offset_deg", *compassOffset)
	}

	svc, err := locate.Start(locate.Config{
		Port:         *port,
		TickInterval: *tick,
		Extrapolation: extrapolate.Config{
			Strategy: extrapolate.Linear{},
			Horizon:  *horizon,
		},
		Compass: cmp,
		Metrics: collector,
	})
	if err != nil {
		log.Error("server start failed", "error", err)
		os.Exit(1)
	}

	srv := web.NewServer(svc, collector, *httpPort)
	srv.StartAsync()

	log.Info("listening", "camera_addr", svc.Addr(), "http_port", *httpPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n👋 shutting down...")
	if err := srv.Shutdown(); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if err := svc.Stop(); err != nil {
		log.Warn("service stop", "error", err)
	}
}
