package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"tradedash/internal/capture"
)

func main() {
	url := flag.String("url", "http://localhost:8087/", "dashboard URL to capture")
	out := flag.String("out", "./dashboard.png", "output PNG path")
	waitFor := flag.String("wait-for", "#book", "CSS selector that must be visible first")
	width := flag.Int64("width", 1440, "viewport width")
	height := flag.Int64("height", 900, "viewport height")
	headless := flag.Bool("headless", true, "run Chrome without a window")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+5*time.Second)
	defer cancel()

	png, err := capture.Screenshot(ctx, capture.Options{
		URL:      *url,
		WaitFor:  *waitFor,
		Width:    *width,
		Height:   *height,
		Headless: *headless,
		Wait:     *timeout,
		Quiet:    true,
	})
	if err != nil {
		log.Fatalf("capture: %v", err)
	}
	if err := os.WriteFile(*out, png, 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	fmt.Printf("Wrote %d bytes from %s to %s\n", len(png), *url, *out)
}
