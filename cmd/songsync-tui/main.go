package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/handiism/songsync/internal/config"
	"github.com/handiism/songsync/internal/logging"
	"github.com/handiism/songsync/internal/tui"
)

func main() {
	configFlag := flag.String("config", "songsync.toml", "Path to config file")
	logFlag := flag.String("log", "songsync-tui.log", "Log file")
	flag.Parse()

	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(*logFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	if err := tui.Run(tui.Options{Settings: settings, Logger: logging.New(logFile, false)}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
