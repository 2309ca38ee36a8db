package schedule

import (
	"context"
	"fmt"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

// Move reschedules an event to newDate, e.g. after a drag and drop.
//
// Dropping on the current date does nothing. A recurring instance is
// detached from its series (repeat becomes {none, 0}); the other instances
// are untouched. The snapshot is updated before the server answers, and if
// the save fails the whole previous record is restored.
func (c *Controller) Move(ctx context.Context, id, newDate string) error {
	prev, ok := c.Find(id)
	if !ok {
		appLog.Error("move: event not in snapshot", ErrEventNotFound, "id", id)
		c.notifier.Notify(VariantError, MsgSaveFailed)
		return fmt.Errorf("%w: %q", ErrEventNotFound, id)
	}
	if prev.Date == newDate {
		return nil
	}
	if _, err := model.ParseDate(newDate, nil); err != nil {
		c.notifier.Notify(VariantError, MsgSaveFailed)
		return fmt.Errorf("%w: target date %q", ErrInvalidEvent, newDate)
	}

	moved := prev
	moved.Date = newDate
	if prev.Repeat.IsRecurring() {
		moved.Repeat = model.NoRepeat()
	}

	c.update(func(events []model.Event) []model.Event {
		return replaced(events, moved)
	})

	if err := c.Save(ctx, model.ExistingEvent{Event: moved}); err != nil {
		c.update(func(events []model.Event) []model.Event {
			return replaced(events, prev)
		})
		appLog.Info("move rolled back", "id", id, "date", prev.Date)
		return err
	}
	return nil
}
