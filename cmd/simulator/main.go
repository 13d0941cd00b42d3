package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	natsURL     = flag.String("nats", "nats://localhost:4222", "NATS server URL")
	stationID   = flag.String("station", "station-001", "Station ID")
	chargerID   = flag.String("charger", "charger-01", "Charger ID")
	connectors  = flag.Int("connectors", 2, "Number of connectors")
	maxPower    = flag.Float64("max-power", 150.0, "Charger max power (kW)")
	vehiclePow  = flag.Float64("vehicle-power", 50.0, "Simulated vehicle max power (kW)")
	interval    = flag.Duration("interval", 5*time.Second, "Session update interval")
	withBESS    = flag.Bool("bess", false, "Simulate the site battery too")
	bessSOC     = flag.Float64("soc", 80.0, "Initial BESS state of charge (%)")
	bessCap     = flag.Float64("bess-capacity", 200.0, "BESS capacity (kWh)")
	autoStart   = flag.Bool("auto-start", false, "Start a session on connector 1 at boot")
	interactive = flag.Bool("interactive", false, "Enable interactive mode")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := &SimulatorConfig{
		NATSUrl:         *natsURL,
		StationID:       *stationID,
		ChargerID:       *chargerID,
		ConnectorCount:  *connectors,
		MaxPowerKW:      *maxPower,
		VehicleMaxKW:    *vehiclePow,
		UpdateInterval:  *interval,
		SimulateBESS:    *withBESS,
		BESSSOC:         *bessSOC,
		BESSCapacityKWh: *bessCap,
	}

	sim, err := NewSimulator(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to start simulator", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down simulator...")
		sim.Stop()
		os.Exit(0)
	}()

	if *autoStart {
		sim.StartSession(1, *vehiclePow)
	}

	if *interactive {
		runInteractiveMode(sim)
		sim.Stop()
		return
	}

	fmt.Printf("Charger simulator started\n")
	fmt.Printf("  Station: %s\n", cfg.StationID)
	fmt.Printf("  Charger: %s (%d connectors, %.0f kW)\n", cfg.ChargerID, cfg.ConnectorCount, cfg.MaxPowerKW)
	fmt.Printf("  BESS:    %v\n", cfg.SimulateBESS)
	fmt.Println("\nPress Ctrl+C to stop")

	select {}
}

func runInteractiveMode(sim *Simulator) {
	fmt.Println("\nCharger Simulator - Interactive Mode")
	fmt.Println("====================================")
	fmt.Println("Commands:")
	fmt.Println("  start <connector> [power]  - Start a session")
	fmt.Println("  stop <connector>           - Stop the session on a connector")
	fmt.Println("  vehicle <connector> <kw>   - Change the vehicle max power")
	fmt.Println("  soc <percent>              - Set BESS state of charge")
	fmt.Println("  status                     - Print simulator state")
	fmt.Println("  quit                       - Exit")
	fmt.Println("")

	sim.RunInteractive()
}
