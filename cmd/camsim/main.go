package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sightline-robotics/camtrack/pkg/camnet"
	"github.com/sightline-robotics/camtrack/pkg/geo"
)

// camsim pretends to be a camera node: it registers a fixed pose and
// streams bearings toward a virtual target circling the arena center.
func main() {
	addr := flag.String("addr", "localhost:1111", "server address")
	x := flag.Float64("x", 0, "camera x position")
	y := flag.Float64("y", 0, "camera y position")
	rot := flag.Float64("rot", 45, "camera rotation in degrees")
	fov := flag.Float64("fov", 170, "camera field of view in degrees")
	centerX := flag.Float64("cx", 2, "target orbit center x")
	centerY := flag.Float64("cy", 2, "target orbit center y")
	radius := flag.Float64("radius", 1, "target orbit radius")
	period := flag.Duration("period", 20*time.Second, "time for one target orbit")
	rate := flag.Duration("rate", 100*time.Millisecond, "interval between observations")
	flag.Parse()

	cam := geo.PlacedCamera{
		Position: geo.Position{X: *x, Y: *y, Rotation: geo.Rad(*rot)},
		FOV:      geo.Rad(*fov),
	}
	if !cam.Valid() {
		log.Fatalf("invalid camera pose: %+v", cam)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	if err := camnet.WriteRegistration(conn, cam); err != nil {
		log.Fatalf("register: %v", err)
	}

	fmt.Printf("📷 camsim registered at (%.1f, %.1f) facing %.0f°\n", *x, *y, *rot)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	start := time.Now()
	ticker := time.NewTicker(*rate)
	defer ticker.Stop()

	sent, skipped := 0, 0
	for {
		select {
		case <-sigChan:
			fmt.Printf("\n👋 camsim done (%d sent, %d out of view)\n", sent, skipped)
			return
		case now := <-ticker.C:
			phase := 2 * math.Pi * float64(now.Sub(start)) / float64(*period)
			tx := *centerX + *radius*math.Cos(phase)
			ty := *centerY + *radius*math.Sin(phase)

			bearing := geo.NormalizeAngle(math.Atan2(ty-cam.Position.Y, tx-cam.Position.X) - cam.Position.Rotation)
			if !cam.InFOV(bearing) {
				skipped++
				continue
			}
			if err := camnet.WriteObservation(conn, bearing); err != nil {
				log.Fatalf("send observation: %v", err)
			}
			sent++
		}
	}
}
