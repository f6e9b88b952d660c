package ledger

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"RifasCuba/internal/model"
)

// Every admin operation re-checks the actor; callers' menus are not trusted.

func (s *Service) AddMethod(ctx context.Context, actor int64, kind model.MethodKind, name, card, confirm string) (model.PaymentMethod, error) {
	if err := s.requireAdmin(actor); err != nil {
		return model.PaymentMethod{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.PaymentMethod{}, model.Invalid("el nombre no puede estar vacío")
	}
	m, err := s.store.AddMethod(ctx, model.PaymentMethod{
		Kind: kind, Name: name, Card: strings.TrimSpace(card), Confirm: strings.TrimSpace(confirm),
	})
	if err != nil {
		return m, err
	}
	s.log.Info("payment method added", zap.String("kind", string(kind)), zap.Int64("id", m.ID), zap.String("name", m.Name))
	return m, nil
}

func (s *Service) SetMethodActive(ctx context.Context, actor int64, kind model.MethodKind, id int64, active bool) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	return s.store.SetMethodActive(ctx, kind, id, active)
}

func (s *Service) DeleteMethod(ctx context.Context, actor int64, kind model.MethodKind, id int64) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	return s.store.DeleteMethod(ctx, kind, id)
}

func (s *Service) SetExchangeRate(ctx context.Context, actor int64, rate decimal.Decimal) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	if !rate.IsPositive() {
		return model.Invalid("la tasa debe ser un número positivo")
	}
	if err := s.store.SetExchangeRate(ctx, rate); err != nil {
		return err
	}
	s.log.Info("exchange rate updated", zap.String("rate", rate.String()))
	return nil
}

func (s *Service) SetPrice(ctx context.Context, actor int64, bt model.BetType, p model.Price) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	if _, ok := model.ParseBetType(string(bt)); !ok {
		return model.Invalid("tipo de jugada desconocido")
	}
	if p.CUP < 0 || p.USD < 0 {
		return model.Invalid("los precios no pueden ser negativos")
	}
	if err := s.store.SetPrice(ctx, bt, p); err != nil {
		return err
	}
	s.log.Info("play price updated", zap.String("type", string(bt)), zap.Stringer("cup", p.CUP), zap.Stringer("usd", p.USD))
	return nil
}

// Snapshot is the admin's view of the current configuration.
type Snapshot struct {
	Rate     decimal.Decimal
	Prices   map[model.BetType]model.Price
	Deposit  []model.PaymentMethod
	Withdraw []model.PaymentMethod
}

func (s *Service) Snapshot(ctx context.Context, actor int64) (Snapshot, error) {
	if err := s.requireAdmin(actor); err != nil {
		return Snapshot{}, err
	}
	return s.PublicSnapshot(ctx, false)
}

// PublicSnapshot skips the admin check; activeOnly hides disabled methods.
func (s *Service) PublicSnapshot(ctx context.Context, activeOnly bool) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Rate, err = s.ExchangeRate(ctx); err != nil {
		return snap, err
	}
	if snap.Prices, err = s.Prices(ctx); err != nil {
		return snap, err
	}
	if snap.Deposit, err = s.store.ListMethods(ctx, model.MethodDeposit, activeOnly); err != nil {
		return snap, err
	}
	if snap.Withdraw, err = s.store.ListMethods(ctx, model.MethodWithdraw, activeOnly); err != nil {
		return snap, err
	}
	return snap, nil
}
