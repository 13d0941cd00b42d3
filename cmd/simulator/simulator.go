package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/adapter/fabric"
	"github.com/electra-charge/ems/internal/adapter/queue"
)

// SimulatorConfig holds the simulator configuration.
type SimulatorConfig struct {
	NATSUrl         string
	StationID       string
	ChargerID       string
	ConnectorCount  int
	MaxPowerKW      float64
	VehicleMaxKW    float64
	UpdateInterval  time.Duration
	SimulateBESS    bool
	BESSSOC         float64
	BESSCapacityKWh float64
}

type connectorState struct {
	sessionID   string
	vehicleMax  float64
	offered     float64
	consumed    float64
	totalEnergy float64
}

// Simulator plays one charger, and optionally the site battery, against
// the fabric: it publishes session traffic and telemetry and honors the
// power limits and battery commands the EMS sends back.
type Simulator struct {
	cfg *SimulatorConfig
	mq  queue.MessageQueue
	log *zap.Logger

	mu         sync.Mutex
	connectors map[int]*connectorState

	bessSOC   float64
	bessPower float64 // positive = discharging

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewSimulator(cfg *SimulatorConfig, log *zap.Logger) (*Simulator, error) {
	mq, err := queue.NewNATSQueue(cfg.NATSUrl, 2*time.Second, log)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		cfg:        cfg,
		mq:         mq,
		log:        log,
		connectors: make(map[int]*connectorState),
		bessSOC:    cfg.BESSSOC,
		stopChan:   make(chan struct{}),
	}

	limitSubject := fmt.Sprintf("electra.%s.charger.%s.connector.*.power_limit", cfg.StationID, cfg.ChargerID)
	if err := mq.Subscribe(limitSubject, s.onPowerLimit); err != nil {
		return nil, err
	}

	if cfg.SimulateBESS {
		cmdSubject := fmt.Sprintf("electra.%s.bess.command", cfg.StationID)
		if err := mq.Subscribe(cmdSubject, s.onBESSCommand); err != nil {
			return nil, err
		}
	}

	s.wg.Add(1)
	go s.loop()

	return s, nil
}

func (s *Simulator) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	s.mq.Close()
}

func (s *Simulator) onPowerLimit(data []byte) error {
	var cmd fabric.PowerLimitCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.connectors[cmd.ConnectorID]; ok {
		conn.offered = cmd.PowerLimit
		s.log.Info("power limit received",
			zap.Int("connector", cmd.ConnectorID),
			zap.Float64("limit_kw", cmd.PowerLimit))
	}
	return nil
}

func (s *Simulator) onBESSCommand(data []byte) error {
	var cmd fabric.BESSCommandMessage
	if err := json.Unmarshal(data, &cmd); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch cmd.Command {
	case "discharge":
		s.bessPower = cmd.Power
	case "charge":
		s.bessPower = -cmd.Power
	default:
		s.bessPower = 0
	}
	s.log.Info("bess command received",
		zap.String("command", cmd.Command),
		zap.Float64("power_kw", cmd.Power))
	return nil
}

// StartSession publishes a session/start for a connector.
func (s *Simulator) StartSession(connectorID int, vehicleMax float64) {
	s.mu.Lock()
	if _, busy := s.connectors[connectorID]; busy {
		s.mu.Unlock()
		s.log.Warn("connector already in use", zap.Int("connector", connectorID))
		return
	}
	sessionID := uuid.NewString()
	s.connectors[connectorID] = &connectorState{
		sessionID:  sessionID,
		vehicleMax: vehicleMax,
	}
	s.mu.Unlock()

	s.publish(fmt.Sprintf("electra.%s.charger.%s.session.start", s.cfg.StationID, s.cfg.ChargerID),
		fabric.SessionStartMessage{
			Timestamp:       time.Now().UTC(),
			ChargerID:       s.cfg.ChargerID,
			ConnectorID:     connectorID,
			SessionID:       sessionID,
			VehicleMaxPower: vehicleMax,
		})
	s.log.Info("session started",
		zap.String("sessionId", sessionID),
		zap.Int("connector", connectorID))
}

// StopSession publishes a session/stop for a connector.
func (s *Simulator) StopSession(connectorID int) {
	s.mu.Lock()
	conn, ok := s.connectors[connectorID]
	if !ok {
		s.mu.Unlock()
		s.log.Warn("no session on connector", zap.Int("connector", connectorID))
		return
	}
	delete(s.connectors, connectorID)
	s.mu.Unlock()

	s.publish(fmt.Sprintf("electra.%s.charger.%s.session.stop", s.cfg.StationID, s.cfg.ChargerID),
		fabric.SessionStopMessage{
			Timestamp:   time.Now().UTC(),
			ChargerID:   s.cfg.ChargerID,
			ConnectorID: connectorID,
			SessionID:   conn.sessionID,
			TotalEnergy: conn.totalEnergy,
			Reason:      "user_stop",
		})
	s.log.Info("session stopped", zap.String("sessionId", conn.sessionID))
}

func (s *Simulator) SetVehicleMax(connectorID int, kw float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.connectors[connectorID]; ok {
		conn.vehicleMax = kw
	}
}

func (s *Simulator) SetBESSSOC(soc float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bessSOC = math.Max(0, math.Min(100, soc))
}

func (s *Simulator) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick ramps every session toward its offered power, integrates energy,
// and reports both the per-session updates and the battery status.
func (s *Simulator) tick() {
	hours := s.cfg.UpdateInterval.Hours()

	s.mu.Lock()
	type pending struct {
		connectorID int
		update      fabric.SessionUpdateMessage
	}
	var updates []pending
	for id, conn := range s.connectors {
		target := math.Min(conn.offered, conn.vehicleMax)
		// Vehicles do not jump to the setpoint instantly.
		conn.consumed += (target - conn.consumed) * 0.5
		if conn.consumed < 0 {
			conn.consumed = 0
		}
		conn.totalEnergy += conn.consumed * hours

		updates = append(updates, pending{
			connectorID: id,
			update: fabric.SessionUpdateMessage{
				Timestamp:       time.Now().UTC(),
				ChargerID:       s.cfg.ChargerID,
				ConnectorID:     id,
				SessionID:       conn.sessionID,
				ConsumedPower:   conn.consumed,
				VehicleMaxPower: conn.vehicleMax,
				EnergyDelivered: conn.totalEnergy,
			},
		})
	}

	var bessStatus *fabric.BESSStatusMessage
	if s.cfg.SimulateBESS {
		deltaSOC := s.bessPower * hours / s.cfg.BESSCapacityKWh * 100
		s.bessSOC = math.Max(0, math.Min(100, s.bessSOC-deltaSOC))
		bessStatus = &fabric.BESSStatusMessage{
			Timestamp:         time.Now().UTC(),
			SOC:               s.bessSOC,
			Power:             s.bessPower,
			Status:            bessStatusString(s.bessPower),
			AvailableCapacity: s.bessSOC / 100 * s.cfg.BESSCapacityKWh,
		}
	}
	s.mu.Unlock()

	for _, p := range updates {
		s.publish(fmt.Sprintf("electra.%s.charger.%s.session.update", s.cfg.StationID, s.cfg.ChargerID), p.update)
	}
	if bessStatus != nil {
		s.publish(fmt.Sprintf("electra.%s.bess.status", s.cfg.StationID), *bessStatus)
	}
}

func bessStatusString(power float64) string {
	switch {
	case power > 0.1:
		return "discharging"
	case power < -0.1:
		return "charging"
	default:
		return "idle"
	}
}

func (s *Simulator) publish(subject string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("marshal failed", zap.Error(err))
		return
	}
	if err := s.mq.Publish(subject, data); err != nil {
		s.log.Error("publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// RunInteractive reads commands from stdin until quit.
func (s *Simulator) RunInteractive() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		parts := strings.Fields(line)

		if len(parts) == 0 {
			fmt.Print("> ")
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "start":
			connID := 1
			power := s.cfg.VehicleMaxKW
			if len(args) > 0 {
				connID, _ = strconv.Atoi(args[0])
			}
			if len(args) > 1 {
				power, _ = strconv.ParseFloat(args[1], 64)
			}
			s.StartSession(connID, power)

		case "stop":
			connID := 1
			if len(args) > 0 {
				connID, _ = strconv.Atoi(args[0])
			}
			s.StopSession(connID)

		case "vehicle":
			if len(args) < 2 {
				fmt.Println("Usage: vehicle <connector> <kw>")
			} else {
				connID, _ := strconv.Atoi(args[0])
				kw, _ := strconv.ParseFloat(args[1], 64)
				s.SetVehicleMax(connID, kw)
				fmt.Printf("Vehicle max on connector %d set to %.1f kW\n", connID, kw)
			}

		case "soc":
			if len(args) < 1 {
				fmt.Println("Usage: soc <percent>")
			} else {
				soc, _ := strconv.ParseFloat(args[0], 64)
				s.SetBESSSOC(soc)
				fmt.Printf("BESS SOC set to %.1f%%\n", soc)
			}

		case "status":
			s.mu.Lock()
			fmt.Printf("Charger %s, %d active sessions\n", s.cfg.ChargerID, len(s.connectors))
			for id, conn := range s.connectors {
				fmt.Printf("  connector %d: session %s offered %.1f kW consumed %.1f kW energy %.2f kWh\n",
					id, conn.sessionID, conn.offered, conn.consumed, conn.totalEnergy)
			}
			if s.cfg.SimulateBESS {
				fmt.Printf("  BESS: SOC %.1f%% power %.1f kW\n", s.bessSOC, s.bessPower)
			}
			s.mu.Unlock()

		case "quit", "exit":
			fmt.Println("Goodbye!")
			return

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}

		fmt.Print("> ")
	}
}
