package orders

import "time"

// Transition applies to on behalf of actor and returns the status the order had before.
// On error the order is not modified.
func Transition(o *Order, to Status, actor Actor, now time.Time) (Status, error) {
	from := o.Status
	if !CanTransitionAs(from, to, actor.Role) {
		return from, &TransitionError{From: from, To: to}
	}

	o.Status = to
	o.UpdatedAt = now
	switch to {
	case StatusPaid:
		stampOnce(&o.PaidAt, now)
	case StatusDelivering:
		stampOnce(&o.DeliveryTime, now)
	case StatusCompleted:
		stampOnce(&o.CompletedAt, now)
	}
	return from, nil
}

func stampOnce(dst **time.Time, now time.Time) {
	if *dst != nil {
		return
	}
	t := now
	*dst = &t
}
