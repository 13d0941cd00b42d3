package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/domain"
	"github.com/electra-charge/ems/internal/ports"
)

// SessionHandler exposes the session lifecycle over REST. It is a thin
// shim: every mutation goes through the coordinator, reads go through
// the session reader.
type SessionHandler struct {
	coord  ports.SessionCoordinator
	reader ports.SessionReader
	log    *zap.Logger
}

func NewSessionHandler(coord ports.SessionCoordinator, reader ports.SessionReader, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		coord:  coord,
		reader: reader,
		log:    log,
	}
}

type StartSessionRequest struct {
	SessionID       string  `json:"session_id"`
	ChargerID       string  `json:"charger_id"`
	ConnectorID     int     `json:"connector_id"`
	VehicleMaxPower float64 `json:"vehicle_max_power"`
	UserID          string  `json:"user_id"`
	RFIDTag         string  `json:"rfid_tag"`
}

type StopSessionRequest struct {
	TotalEnergy float64 `json:"total_energy"`
	Reason      string  `json:"reason"`
}

type PowerUpdateRequest struct {
	ConsumedPower   float64  `json:"consumed_power"`
	VehicleMaxPower float64  `json:"vehicle_max_power"`
	TotalEnergy     float64  `json:"total_energy"`
	VehicleSOC      *float64 `json:"vehicle_soc"`
}

func (h *SessionHandler) Start(c *fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.ChargerID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "charger_id is required")
	}
	if req.VehicleMaxPower <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "vehicle_max_power must be positive")
	}

	sess, err := h.coord.StartSession(c.Context(), ports.StartSessionInput{
		SessionID:       req.SessionID,
		ChargerID:       req.ChargerID,
		ConnectorID:     req.ConnectorID,
		VehicleMaxPower: req.VehicleMaxPower,
		UserID:          req.UserID,
		RFIDTag:         req.RFIDTag,
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"sessionId":      sess.SessionID,
		"allocatedPower": sess.AllocatedPower,
	})
}

func (h *SessionHandler) Stop(c *fiber.Ctx) error {
	id := c.Params("id")

	var req StopSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	reason := domain.StopReason(req.Reason)
	if reason == "" {
		reason = domain.StopReasonUser
	}

	if err := h.coord.StopSession(c.Context(), id, req.TotalEnergy, reason); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *SessionHandler) PowerUpdate(c *fiber.Ctx) error {
	id := c.Params("id")

	var req PowerUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	allocated, err := h.coord.UpdateSession(c.Context(), ports.UpdateSessionInput{
		SessionID:       id,
		ConsumedPower:   req.ConsumedPower,
		VehicleMaxPower: req.VehicleMaxPower,
		TotalEnergy:     req.TotalEnergy,
		VehicleSOC:      req.VehicleSOC,
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"newAllocatedPower": allocated})
}

func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sess, err := h.reader.FindSession(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

func (h *SessionHandler) ListActive(c *fiber.Ctx) error {
	sessions, err := h.reader.FindActiveSessions(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(sessions)
}
