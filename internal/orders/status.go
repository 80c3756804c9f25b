package orders

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPaid       Status = "PAID"
	StatusConfirmed  Status = "CONFIRMED"
	StatusPreparing  Status = "PREPARING"
	StatusDelivering Status = "DELIVERING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// AllStatuses is the fixed state set in lifecycle order.
var AllStatuses = []Status{
	StatusPending, StatusPaid, StatusConfirmed, StatusPreparing,
	StatusDelivering, StatusCompleted, StatusCancelled,
}

// Role identifies who is driving a transition.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleMerchant Role = "MERCHANT"
	RoleSystem   Role = "SYSTEM"
	RolePayment  Role = "PAYMENT"
	RoleAdmin    Role = "ADMIN"
)

type Actor struct {
	Role   Role
	UserID int64
}

var (
	PaymentActor = Actor{Role: RolePayment}
	SystemActor  = Actor{Role: RoleSystem}
)

// edge -> roles allowed to trigger it
var validNext = map[Status]map[Status][]Role{
	StatusPending: {
		StatusPaid:      {RolePayment},
		StatusCancelled: {RoleCustomer, RoleSystem},
	},
	StatusPaid: {
		StatusCancelled: {RoleCustomer},
		StatusConfirmed: {RoleMerchant},
	},
	StatusConfirmed:  {StatusPreparing: {RoleMerchant}},
	StatusPreparing:  {StatusDelivering: {RoleMerchant}},
	StatusDelivering: {StatusCompleted: {RoleMerchant, RoleCustomer}},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func CanTransitionAs(from, to Status, role Role) bool {
	for _, r := range validNext[from][to] {
		if r == role {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Settled reports whether payment has been captured and not cancelled.
func (s Status) Settled() bool {
	switch s {
	case StatusPaid, StatusConfirmed, StatusPreparing, StatusDelivering, StatusCompleted:
		return true
	}
	return false
}

var statusLabels = map[Status]string{
	StatusPending:    "Awaiting payment",
	StatusPaid:       "Paid",
	StatusConfirmed:  "Confirmed",
	StatusPreparing:  "Preparing",
	StatusDelivering: "Out for delivery",
	StatusCompleted:  "Completed",
	StatusCancelled:  "Cancelled",
}

// Label returns the human readable label, or the raw name for unknown statuses.
func Label(s Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}
