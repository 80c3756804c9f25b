package payment

import (
	"context"
	"fmt"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"sort"
)

type Result struct {
	OrderNo string `json:"orderNo"`
	Status  string `json:"status"`
	Paid    bool   `json:"paid"`
}

// Service routes payment calls to the reconciler of the requested gateway.
type Service struct {
	reconcilers map[string]*Reconciler
}

func NewService(rs ...*Reconciler) *Service {
	m := make(map[string]*Reconciler, len(rs))
	for _, r := range rs {
		m[r.Gateway.Name()] = r
	}
	return &Service{reconcilers: m}
}

func (s *Service) Gateways() []string {
	out := make([]string, 0, len(s.reconcilers))
	for name := range s.reconcilers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Service) reconciler(gateway string) (*Reconciler, error) {
	r, ok := s.reconcilers[gateway]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, gateway)
	}
	return r, nil
}

func (s *Service) CreatePayment(ctx context.Context, orderID int64, gateway string) (Artifact, error) {
	r, err := s.reconciler(gateway)
	if err != nil {
		return Artifact{}, err
	}
	return r.CreatePaymentArtifact(ctx, orderID)
}

func (s *Service) QueryPayment(ctx context.Context, orderNo, gateway string) (Result, error) {
	r, err := s.reconciler(gateway)
	if err != nil {
		return Result{}, err
	}
	status, err := r.QueryAndSettle(ctx, orderNo)
	if err != nil {
		return Result{}, err
	}
	return Result{
		OrderNo: orderNo,
		Status:  status,
		Paid:    orders.Status(status).Settled(),
	}, nil
}
