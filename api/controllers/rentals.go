package controllers

import (
	"context"
	"net/http"

	"github.com/maisonlocation/costume-rental-backend/api/middleware"
	"github.com/maisonlocation/costume-rental-backend/api/responses"
	"github.com/maisonlocation/costume-rental-backend/api/validators"
	"github.com/maisonlocation/costume-rental-backend/internal/rentals"
	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	pkgerrors "github.com/maisonlocation/costume-rental-backend/pkg/errors"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
	"github.com/maisonlocation/costume-rental-backend/pkg/types"
)

// RentalService is the booking surface consumed by the rental endpoints.
type RentalService interface {
	CreateRental(ctx context.Context, costumeID int64, period rentals.Period, holder rentals.Holder) (*models.Rental, error)
	ReturnRental(ctx context.Context, rentalID int64) (*models.Rental, error)
	GetRental(ctx context.Context, rentalID int64, caller rentals.Caller) (*models.Rental, error)
}

type rentalRequest struct {
	CostumeID          int64  `json:"costume_id" validate:"required,gt=0"`
	StartDate          string `json:"start_date" validate:"required,date"`
	ExpectedReturnDate string `json:"expected_return_date" validate:"required,date"`
}

type guestRentalRequest struct {
	rentalRequest
	GuestName    string `json:"guest_name" validate:"notblank,max=255"`
	GuestPhone   string `json:"guest_phone" validate:"notblank,max=255"`
	GuestAddress string `json:"guest_address" validate:"notblank,max=255"`
}

func (r rentalRequest) period() (rentals.Period, error) {
	start, err := types.ParseDate(r.StartDate)
	if err != nil {
		return rentals.Period{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid start_date")
	}
	expected, err := types.ParseDate(r.ExpectedReturnDate)
	if err != nil {
		return rentals.Period{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid expected_return_date")
	}
	return rentals.Period{Start: start, ExpectedReturn: expected}, nil
}

// RentalCreate books a costume for the authenticated user.
func RentalCreate(svc RentalService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body rentalRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		period, err := body.period()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		holder := rentals.UserHolder(middleware.UserIDFromContext(r.Context()))
		rental, err := svc.CreateRental(r.Context(), body.CostumeID, period, holder)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, rentals.FromModel(rental))
	}
}

// GuestRentalCreate books a costume for a caller without an account.
func GuestRentalCreate(svc RentalService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body guestRentalRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		period, err := body.period()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		holder := rentals.GuestHolder(rentals.Guest{
			Name:    validators.SanitizeString(body.GuestName, 255),
			Phone:   validators.SanitizeString(body.GuestPhone, 255),
			Address: validators.SanitizeString(body.GuestAddress, 255),
		})
		rental, err := svc.CreateRental(r.Context(), body.CostumeID, period, holder)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, rentals.FromModel(rental))
	}
}

func RentalDetail(svc RentalService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "rentalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		caller := rentals.Caller{
			UserID: middleware.UserIDFromContext(r.Context()),
			Role:   middleware.RoleFromContext(r.Context()),
		}
		rental, err := svc.GetRental(r.Context(), id, caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rentals.FromModel(rental))
	}
}

// AdminRentalReturn marks a rental returned and frees its costume.
func AdminRentalReturn(svc RentalService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "rentalId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rental, err := svc.ReturnRental(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rentals.FromModel(rental))
	}
}
