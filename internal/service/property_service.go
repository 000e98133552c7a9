package service

import (
	"context"
	"time"

	"rental-service/internal/apperr"
	"rental-service/internal/booking"
	"rental-service/internal/models"
	"rental-service/internal/util"

	"go.uber.org/zap"
)

// PropertyService handles property listing management.
type PropertyService struct {
	store  Datastore
	logger *zap.Logger
}

// NewPropertyService creates a new property service
func NewPropertyService(store Datastore) *PropertyService {
	return &PropertyService{store: store, logger: util.GetLogger()}
}

// CreatePropertyRequest is the payload for listing a property.
type CreatePropertyRequest struct {
	Title          string `json:"title" binding:"required"`
	Description    string `json:"description"`
	Price          int64  `json:"price" binding:"required,min=1"`
	PricingPeriod  string `json:"pricing_period" binding:"required"`
	AvailableFrom  string `json:"available_from"`
	AvailableUntil string `json:"available_until"`
}

// UpdatePropertyRequest carries partial updates; nil fields are left untouched.
type UpdatePropertyRequest struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	Price          *int64  `json:"price"`
	PricingPeriod  *string `json:"pricing_period"`
	AvailableFrom  *string `json:"available_from"`
	AvailableUntil *string `json:"available_until"`
}

// Create lists a new property owned by the caller.
func (s *PropertyService) Create(ctx context.Context, caller Caller, req *CreatePropertyRequest) (*models.Property, error) {
	ctx, span := util.StartSpan(ctx, "PropertyService.Create")
	defer span.End()

	period, err := parsePricingPeriod(req.PricingPeriod)
	if err != nil {
		return nil, err
	}
	from, until, err := parseWindow(req.AvailableFrom, req.AvailableUntil)
	if err != nil {
		return nil, err
	}

	p := &models.Property{
		HostID:         caller.UserID,
		Title:          req.Title,
		Description:    req.Description,
		Price:          req.Price,
		PricingPeriod:  period,
		AvailableFrom:  from,
		AvailableUntil: until,
	}
	if err := s.store.CreateProperty(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("Property listed",
		zap.Int64("property_id", p.ID),
		zap.Int64("host_id", p.HostID))
	return p, nil
}

// Update edits a property. Owner or admin only. Pricing and availability-window
// changes are refused while blocking bookings reference the property; non-date
// fields stay editable.
func (s *PropertyService) Update(ctx context.Context, caller Caller, propertyID int64, req *UpdatePropertyRequest) (*models.Property, error) {
	ctx, span := util.StartSpan(ctx, "PropertyService.Update")
	defer span.End()

	p, err := s.store.GetPropertyByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.HostID != caller.UserID && !caller.IsAdmin() {
		return nil, apperr.Forbidden("only the property host or an admin may edit this property")
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Description != nil {
		p.Description = *req.Description
	}

	touchesBookedTerms := req.Price != nil || req.PricingPeriod != nil ||
		req.AvailableFrom != nil || req.AvailableUntil != nil
	if touchesBookedTerms {
		booked, err := s.store.PropertyHasBlockingRanges(ctx, propertyID)
		if err != nil {
			return nil, err
		}
		if booked {
			return nil, apperr.Conflict("cannot change pricing or availability while active bookings exist")
		}
	}

	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, apperr.Validation("price", "price must be positive")
		}
		p.Price = *req.Price
	}
	if req.PricingPeriod != nil {
		period, err := parsePricingPeriod(*req.PricingPeriod)
		if err != nil {
			return nil, err
		}
		p.PricingPeriod = period
	}
	if req.AvailableFrom != nil || req.AvailableUntil != nil {
		fromStr, untilStr := "", ""
		if req.AvailableFrom != nil {
			fromStr = *req.AvailableFrom
		} else if p.AvailableFrom != nil {
			fromStr = p.AvailableFrom.Format(dateLayout)
		}
		if req.AvailableUntil != nil {
			untilStr = *req.AvailableUntil
		} else if p.AvailableUntil != nil {
			untilStr = p.AvailableUntil.Format(dateLayout)
		}
		from, until, err := parseWindow(fromStr, untilStr)
		if err != nil {
			return nil, err
		}
		p.AvailableFrom, p.AvailableUntil = from, until
	}

	if err := s.store.UpdateProperty(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get retrieves a property by id.
func (s *PropertyService) Get(ctx context.Context, propertyID int64) (*models.Property, error) {
	return s.store.GetPropertyByID(ctx, propertyID)
}

// List retrieves all properties, or only the caller's when mine is set.
func (s *PropertyService) List(ctx context.Context, caller Caller, mine bool) ([]models.Property, error) {
	if mine {
		return s.store.ListPropertiesByHost(ctx, caller.UserID)
	}
	return s.store.ListProperties(ctx)
}

func parsePricingPeriod(v string) (models.PricingPeriod, error) {
	switch models.PricingPeriod(v) {
	case models.PeriodNightly, models.PeriodWeekly, models.PeriodMonthly:
		return models.PricingPeriod(v), nil
	}
	return "", apperr.Validation("pricing_period", "must be nightly, weekly or monthly")
}

// parseWindow parses an optional availability window; empty strings mean open.
func parseWindow(fromStr, untilStr string) (from, until *time.Time, err error) {
	if fromStr != "" {
		t, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			return nil, nil, apperr.Validation("available_from", "must be a YYYY-MM-DD date")
		}
		t = booking.NormalizeDay(t)
		from = &t
	}
	if untilStr != "" {
		t, err := time.Parse(dateLayout, untilStr)
		if err != nil {
			return nil, nil, apperr.Validation("available_until", "must be a YYYY-MM-DD date")
		}
		t = booking.NormalizeDay(t)
		until = &t
	}
	if from != nil && until != nil && until.Before(*from) {
		return nil, nil, apperr.Validation("available_until", "window ends before it starts")
	}
	return from, until, nil
}
