package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wtask/collector/internal/collector"
	"github.com/wtask/collector/internal/collector/queue"
)

type (
	// Configuration - server configuration
	Configuration struct {
		// IPAddress - bind the address
		IPAddress string
		// Port - bind the port
		Port uint
		// MaxClients - limit of concurrently served connections
		MaxClients int
		// QueueCapacity - capacity of the shared message queue
		QueueCapacity int
		// QueuePolicy - behaviour of the queue when it is full
		QueuePolicy queue.Policy
		// StopPolicy - fate of queued messages on shutdown
		StopPolicy collector.StopPolicy
		// ReadBufferSize - per-connection read chunk size
		ReadBufferSize int
		// ShutdownTimeout - grace period for stopping the server
		ShutdownTimeout time.Duration
		// LogLevel - zerolog level for server events
		LogLevel zerolog.Level
	}
)

var (
	// Config - current configuration of the server
	Config = Configuration{
		IPAddress:       "",
		Port:            9000,
		MaxClients:      64,
		QueueCapacity:   1024,
		QueuePolicy:     queue.PolicyBlock,
		StopPolicy:      collector.DrainOnStop,
		ReadBufferSize:  255,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        zerolog.InfoLevel,
	}

	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version fingerprint
	Version = "0.2.0"
)

func init() {
	out := flag.CommandLine.Output()
	printUsage := func() {
		fmt.Fprintf(out, "Launch TCP message collector server\n\n\t%s [options]\nOptions:\n\n", BinaryName)
		flag.PrintDefaults()
		fmt.Fprint(out, "\n")
	}
	printError := func(msg string) {
		fmt.Fprintf(out, "%s (v%s) error:\n\n\t%s\n", BinaryName, Version, msg)
	}

	help := false
	flag.BoolVar(&help, "help", false, "Print usage help")
	flag.StringVar(&Config.IPAddress, "ip", "", "Listen address")
	flag.UintVar(&Config.Port, "port", 9000, "Listen port")
	flag.IntVar(&Config.MaxClients, "max-clients", 64, "Max number of concurrently served connections.")
	flag.IntVar(&Config.QueueCapacity, "queue-capacity", 1024, "Capacity of the shared message queue.")
	queuePolicy := "block"
	flag.StringVar(&queuePolicy, "queue-policy", queuePolicy, "Full queue policy: block, drop-oldest or reject.")
	stopPolicy := "drain"
	flag.StringVar(&stopPolicy, "stop-policy", stopPolicy, "Fate of queued messages on shutdown: drain or discard.")
	flag.IntVar(&Config.ReadBufferSize, "read-buffer", 255, "Per-connection read chunk size in bytes.")
	shutdownTTL := 10
	flag.IntVar(&shutdownTTL, "shutdown-timeout", shutdownTTL, "Grace period in seconds for stopping the server.")
	logLevel := "info"
	flag.StringVar(&logLevel, "log-level", logLevel, "Log level: trace, debug, info, warn or error.")

	flag.Parse()

	if help {
		printUsage()
		os.Exit(0)
	}

	if Config.MaxClients < 1 {
		printError("max-clients value should be greater than 0")
		os.Exit(1)
	}
	if Config.QueueCapacity < 1 {
		printError("queue-capacity value should be greater than 0")
		os.Exit(1)
	}
	if Config.ReadBufferSize < 1 {
		printError("read-buffer value should be greater than 0")
		os.Exit(1)
	}
	if shutdownTTL < 1 {
		printError("shutdown-timeout value should be greater than 0")
		os.Exit(1)
	}
	Config.ShutdownTimeout = time.Duration(shutdownTTL) * time.Second

	qp, err := queue.ParsePolicy(queuePolicy)
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	Config.QueuePolicy = qp

	sp, err := collector.ParseStopPolicy(stopPolicy)
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	Config.StopPolicy = sp

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	Config.LogLevel = level

	fmt.Fprint(out, "TCP message collector is launching, press Ctrl-C to stop...\n")
}
