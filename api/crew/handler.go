// Package crew turns crew chat commands into unit status changes. It is
// transport agnostic: the MQTT listener feeds it the sender's contact handle
// and the message text and publishes the returned Reply.
package crew

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stasyk411/gbr/core/logger"
	"github.com/stasyk411/gbr/core/model"
)

// Units is the subset of dispatch.UnitManager used by crews.
type Units interface {
	FindByContactHandle(ctx context.Context, handle string) (model.Unit, error)
	SetUnitStatus(ctx context.Context, id int64, target model.UnitStatus) (model.Unit, error)
}

// Reply is the answer sent back to the crew.
type Reply struct {
	Text    string   `json:"text"`
	Buttons []string `json:"buttons,omitempty"`
	UnitID  int64    `json:"unit_id,omitempty"`
	Status  string   `json:"status,omitempty"`
}

// Button labels shown to crews.
const (
	ButtonBusy    = "🔴 Занят"
	ButtonArrived = "🏁 Прибыл"
	ButtonFree    = "🟢 Свободен"
)

// Buttons is the status keyboard attached to replies.
var Buttons = []string{ButtonBusy, ButtonArrived, ButtonFree}

const (
	textNotRegistered = "❌ Ты не зарегистрирован в системе как ГБР.\nОбратись к диспетчеру, чтобы добавить тебя в базу."
	textUnknown       = "Используй кнопки для изменения статуса:"
	textTryLater      = "⚠️ Сервис временно недоступен, попробуй позже."
	textFailed        = "⚠️ Не удалось изменить статус."
)

var statusLabels = map[model.UnitStatus]string{
	model.UnitBusy:    "Занят",
	model.UnitArrived: "Прибыл",
	model.UnitFree:    "Свободен",
}

var statusChanged = map[model.UnitStatus]string{
	model.UnitBusy:    "🔴 Статус изменён: Занят (выехал на вызов)",
	model.UnitArrived: "🏁 Статус изменён: Прибыл на место",
	model.UnitFree:    "🟢 Статус изменён: Свободен",
}

// Handler answers crew commands. A crew can only act on the unit bound to
// its own contact handle.
type Handler struct {
	units Units
	log   logger.Logger
}

// NewHandler returns a Handler.
func NewHandler(units Units, log logger.Logger) *Handler {
	return &Handler{units: units, log: log}
}

// ParseStatus maps a status token or a button label to a unit status.
func ParseStatus(text string) (model.UnitStatus, bool) {
	switch strings.TrimSpace(text) {
	case ButtonBusy:
		return model.UnitBusy, true
	case ButtonArrived:
		return model.UnitArrived, true
	case ButtonFree:
		return model.UnitFree, true
	}
	s, err := model.ParseUnitStatus(text)
	if err != nil {
		return 0, false
	}
	return s, true
}

// Handle processes one command from the crew identified by handle.
func (h *Handler) Handle(ctx context.Context, handle, text string) Reply {
	text = strings.TrimSpace(text)
	unit, err := h.units.FindByContactHandle(ctx, handle)
	if err != nil {
		return h.failure(handle, err)
	}
	if isStart(text) {
		return Reply{
			Text:    fmt.Sprintf("👋 С возвращением, %s!\nТвой текущий статус: %s", unit.Name, statusLabels[unit.Status]),
			Buttons: Buttons,
			UnitID:  unit.ID,
			Status:  unit.Status.String(),
		}
	}
	target, ok := ParseStatus(text)
	if !ok {
		return Reply{Text: textUnknown, Buttons: Buttons, UnitID: unit.ID, Status: unit.Status.String()}
	}
	unit, err = h.units.SetUnitStatus(ctx, unit.ID, target)
	if err != nil {
		return h.failure(handle, err)
	}
	h.log.Infof("crew %s (%s) set status %s", unit.Name, handle, unit.Status)
	return Reply{Text: statusChanged[unit.Status], Buttons: Buttons, UnitID: unit.ID, Status: unit.Status.String()}
}

// Command adapts Handle to transports that publish arbitrary payloads.
func (h *Handler) Command(ctx context.Context, handle, text string) any {
	return h.Handle(ctx, handle, text)
}

func isStart(text string) bool {
	return text == "start" || text == "/start"
}

func (h *Handler) failure(handle string, err error) Reply {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return Reply{Text: textNotRegistered, Buttons: Buttons}
	case errors.Is(err, model.ErrStorage):
		h.log.Errorf("crew %s: %v", handle, err)
		return Reply{Text: textTryLater, Buttons: Buttons}
	default:
		h.log.Warnf("crew %s: %v", handle, err)
		return Reply{Text: textFailed, Buttons: Buttons}
	}
}
