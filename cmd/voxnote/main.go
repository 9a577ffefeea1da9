package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"voxnote-go/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to config yaml (defaults to VOXNOTE_CONFIG or built-in defaults)")
	flag.Parse()

	if err := bootstrap.Run(context.Background(), bootstrap.Options{ConfigPath: *configPath}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "voxnote failed: %v\n", err)
		os.Exit(1)
	}
}
