package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"storeconsole/internal/domain"
	"storeconsole/internal/pricing"
)

// DiscountInput is one edit of the discount form. When both Discount and
// DiscountedPrice are set the percentage wins.
type DiscountInput struct {
	Price           float64  `json:"price"`
	DiscountDay     int      `json:"discountDay"`
	Discount        *float64 `json:"discount,omitempty"`
	DiscountedPrice *float64 `json:"discountedPrice,omitempty"`
}

func (in DiscountInput) draft() pricing.DiscountDraft {
	d := pricing.NewDiscountDraft(in.Price)
	switch {
	case in.Discount != nil:
		d.SetPercent(*in.Discount)
	case in.DiscountedPrice != nil:
		d.SetDiscountedPrice(*in.DiscountedPrice)
	}
	return d
}

// PreviewDiscount recomputes the coupled discount fields without saving.
func (s *Service) PreviewDiscount(in DiscountInput) (pricing.DiscountDraft, error) {
	if in.Price < 0 {
		return pricing.DiscountDraft{}, ErrInvalidInput
	}
	return in.draft(), nil
}

func (s *Service) CreateDiscount(ctx context.Context, productID string, in DiscountInput) (domain.Discount, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Discount{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" || in.Price <= 0 {
		return domain.Discount{}, ErrInvalidInput
	}

	req, err := in.draft().Request(in.DiscountDay)
	if errors.Is(err, pricing.ErrInvalidDay) {
		return domain.Discount{}, errors.Join(ErrInvalidInput, err)
	}
	if err != nil {
		return domain.Discount{}, err
	}

	created, err := s.backend.CreateDiscount(ctx, productID, req)
	if err != nil {
		return domain.Discount{}, transport(err)
	}
	zap.L().Info("discount created",
		zap.String("product_id", productID),
		zap.Int("day", req.DiscountDay),
		zap.String("price", pricing.Format(req.DiscountedPrice)),
	)
	return *created, nil
}

func (s *Service) DeleteDiscount(ctx context.Context, productID string, discountID string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(productID) == "" || strings.TrimSpace(discountID) == "" {
		return ErrInvalidInput
	}
	if err := s.backend.DeleteDiscount(ctx, productID, discountID); err != nil {
		return transport(err)
	}
	zap.L().Info("discount deleted", zap.String("product_id", productID), zap.String("discount_id", discountID))
	return nil
}
