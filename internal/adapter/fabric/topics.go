package fabric

import "fmt"

// Subject grammar for device communication. The station id segments the
// whole tree so several sites can share one broker.

func subjectChargerTelemetry(stationID string) string {
	return fmt.Sprintf("electra.%s.charger.*.telemetry", stationID)
}

func subjectSessionStart(stationID string) string {
	return fmt.Sprintf("electra.%s.charger.*.session.start", stationID)
}

func subjectSessionStop(stationID string) string {
	return fmt.Sprintf("electra.%s.charger.*.session.stop", stationID)
}

func subjectSessionUpdate(stationID string) string {
	return fmt.Sprintf("electra.%s.charger.*.session.update", stationID)
}

func subjectBESSStatus(stationID string) string {
	return fmt.Sprintf("electra.%s.bess.status", stationID)
}

func subjectBESSTelemetry(stationID string) string {
	return fmt.Sprintf("electra.%s.bess.telemetry", stationID)
}

func subjectBESSCommand(stationID string) string {
	return fmt.Sprintf("electra.%s.bess.command", stationID)
}

func subjectPowerLimit(stationID, chargerID string, connectorID int) string {
	return fmt.Sprintf("electra.%s.charger.%s.connector.%d.power_limit", stationID, chargerID, connectorID)
}

func subjectStartCommand(stationID, chargerID string) string {
	return fmt.Sprintf("electra.%s.charger.%s.session.start_command", stationID, chargerID)
}
