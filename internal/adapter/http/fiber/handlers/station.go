package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/ports"
)

// StationHandler serves the live station snapshot and the static
// topology tables.
type StationHandler struct {
	coord     ports.SessionCoordinator
	stations  ports.StationRepository
	stationID string
	log       *zap.Logger
}

func NewStationHandler(coord ports.SessionCoordinator, stations ports.StationRepository, stationID string, log *zap.Logger) *StationHandler {
	return &StationHandler{
		coord:     coord,
		stations:  stations,
		stationID: stationID,
		log:       log,
	}
}

func (h *StationHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.coord.StationStatus())
}

func (h *StationHandler) Chargers(c *fiber.Ctx) error {
	chargers, err := h.stations.FindChargers(c.Context(), h.stationID)
	if err != nil {
		return err
	}
	return c.JSON(chargers)
}

func (h *StationHandler) Connectors(c *fiber.Ctx) error {
	connectors, err := h.stations.FindConnectors(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(connectors)
}
