// Command captionerd runs the captioner web runner in the foreground: the
// HTTP API that accepts batches and reports their progress.
package main

import (
	"context"
	"log"
	"os"

	"captioner/internal/config"
	"captioner/internal/daemonrun"
)

func main() {
	if err := run(context.Background(), os.Getenv("CAPTIONER_CONFIG")); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return daemonrun.Run(ctx, cfg, daemonrun.Options{})
}
