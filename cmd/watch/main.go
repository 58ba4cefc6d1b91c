package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
)

type positionUpdate struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Rotation       float64 `json:"rotation"`
	Elapsed        float64 `json:"elapsed_s"`
	Extrapolated   bool    `json:"extrapolated"`
	ExtrapolatedBy float64 `json:"extrapolated_by_s"`
}

// watch tails the position stream of a running camtrack server.
func main() {
	host := flag.String("host", "localhost:8088", "server host:port")
	raw := flag.Bool("raw", false, "print raw JSON instead of formatted lines")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws/positions"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("connect to %s: %v", u.String(), err)
	}
	defer conn.Close()

	fmt.Printf("👀 watching %s\n", u.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if *raw {
			fmt.Println(string(msg))
			continue
		}

		var p positionUpdate
		if err := json.Unmarshal(msg, &p); err != nil {
			log.Printf("bad message: %v", err)
			continue
		}
		tag := "fresh"
		if p.Extrapolated {
			tag = fmt.Sprintf("extrapolated %.1fs", p.ExtrapolatedBy)
		}
		fmt.Printf("t=%7.1fs  pos=(%.3f, %.3f)  rot=%7.2f°  %s\n",
			p.Elapsed, p.X, p.Y, p.Rotation*180/math.Pi, tag)
	}
}
