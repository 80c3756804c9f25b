package payment

import (
	"context"
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
)

type TradeStatus string

const (
	TradeSuccess TradeStatus = "SUCCESS"
	TradePending TradeStatus = "PENDING"
	TradeFailed  TradeStatus = "FAILED"
	TradeUnknown TradeStatus = "UNKNOWN"
)

type ArtifactKind string

const (
	ArtifactForm   ArtifactKind = "form"    // HTML form the browser auto-submits
	ArtifactQRCode ArtifactKind = "qr_code" // code url rendered as a scannable code
)

type Artifact struct {
	Gateway string       `json:"gateway"`
	OrderNo string       `json:"orderNo"`
	Kind    ArtifactKind `json:"kind"`
	Content string       `json:"content"`
}

type IntentRequest struct {
	OrderNo     string
	Amount      decimal.Decimal
	Description string
	// return url for redirect gateways, notify url for callback gateways
	CallbackURL string
}

// Gateway is the boundary to an external payment vendor.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (Artifact, error)
	QueryTradeStatus(ctx context.Context, orderNo string) (TradeStatus, error)
}

var (
	ErrMalformedResponse = errors.New("malformed gateway response")
	ErrUnknownGateway    = errors.New("unknown payment gateway")
)

// GatewayError wraps any communication or decoding failure from a vendor.
// The order is left untouched when it is returned, so the call is safe to retry.
type GatewayError struct {
	Gateway string
	Op      string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
