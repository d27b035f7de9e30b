package rentals

import (
	"strings"

	"github.com/maisonlocation/costume-rental-backend/pkg/enums"
	pkgerrors "github.com/maisonlocation/costume-rental-backend/pkg/errors"
	"github.com/maisonlocation/costume-rental-backend/pkg/types"
)

// Period is the booked date range. ExpectedReturn must be after Start.
type Period struct {
	Start          types.Date
	ExpectedReturn types.Date
}

func (p Period) validate(today types.Date) error {
	details := map[string]string{}
	if !p.Start.IsValid() {
		details["start_date"] = "must be a valid date"
	} else if p.Start.Before(today) {
		details["start_date"] = "must be today or later"
	}
	if !p.ExpectedReturn.IsValid() {
		details["expected_return_date"] = "must be a valid date"
	} else if p.Start.IsValid() && !p.ExpectedReturn.After(p.Start) {
		details["expected_return_date"] = "must be after start_date"
	}
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidPeriod, "invalid rental period").WithDetails(details)
}

// Guest identifies a rental holder without an account.
type Guest struct {
	Name    string
	Phone   string
	Address string
}

// Holder is either a registered user or a guest.
type Holder struct {
	UserID *int64
	Guest  *Guest
}

func UserHolder(userID int64) Holder {
	return Holder{UserID: &userID}
}

func GuestHolder(g Guest) Holder {
	return Holder{Guest: &g}
}

func (h Holder) normalized() Holder {
	if h.Guest == nil {
		return h
	}
	g := Guest{
		Name:    strings.TrimSpace(h.Guest.Name),
		Phone:   strings.TrimSpace(h.Guest.Phone),
		Address: strings.TrimSpace(h.Guest.Address),
	}
	return Holder{UserID: h.UserID, Guest: &g}
}

func (h Holder) validate() error {
	invalid := func(msg string, details map[string]string) error {
		e := pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidHolder, msg)
		if details != nil {
			return e.WithDetails(details)
		}
		return e
	}
	switch {
	case h.UserID != nil && h.Guest != nil:
		return invalid("rental holder must be a user or a guest, not both", nil)
	case h.UserID != nil:
		if *h.UserID <= 0 {
			return invalid("invalid user id", nil)
		}
		return nil
	case h.Guest != nil:
		details := map[string]string{}
		if h.Guest.Name == "" {
			details["guest_name"] = "is required"
		}
		if h.Guest.Phone == "" {
			details["guest_phone"] = "is required"
		}
		if h.Guest.Address == "" {
			details["guest_address"] = "is required"
		}
		if len(details) > 0 {
			return invalid("incomplete guest details", details)
		}
		return nil
	default:
		return invalid("rental holder is required", nil)
	}
}

// Caller is the authenticated principal asking for a rental.
type Caller struct {
	UserID int64
	Role   enums.UserRole
}

func (c Caller) isAdmin() bool {
	return c.Role == enums.UserRoleAdmin
}
