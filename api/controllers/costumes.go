package controllers

import (
	"net/http"

	"github.com/maisonlocation/costume-rental-backend/api/responses"
	"github.com/maisonlocation/costume-rental-backend/api/validators"
	"github.com/maisonlocation/costume-rental-backend/internal/catalog"
	"github.com/maisonlocation/costume-rental-backend/pkg/logger"
)

func CostumeList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		costumes, err := svc.ListCostumes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, costumes)
	}
}

// CostumeDetail returns one costume with its category and rental history.
func CostumeDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "costumeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		costume, err := svc.GetCostume(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, costume)
	}
}
