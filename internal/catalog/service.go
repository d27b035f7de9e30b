package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/maisonlocation/costume-rental-backend/pkg/db/models"
	pkgerrors "github.com/maisonlocation/costume-rental-backend/pkg/errors"
	"gorm.io/gorm"
)

// Service is the read-only catalog surface.
type Service interface {
	ListCostumes(ctx context.Context) ([]CostumeDTO, error)
	GetCostume(ctx context.Context, id int64) (*CostumeDTO, error)
}

type costumeReader interface {
	ListCostumes(ctx context.Context) ([]models.Costume, error)
	FindCostume(ctx context.Context, id int64) (*models.Costume, error)
}

type service struct {
	repo costumeReader
}

func NewService(repo costumeReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListCostumes(ctx context.Context) ([]CostumeDTO, error) {
	costumes, err := s.repo.ListCostumes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list costumes")
	}
	out := make([]CostumeDTO, 0, len(costumes))
	for i := range costumes {
		out = append(out, *FromModel(&costumes[i]))
	}
	return out, nil
}

func (s *service) GetCostume(ctx context.Context, id int64) (*CostumeDTO, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "costume not found")
	}
	costume, err := s.repo.FindCostume(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "costume not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load costume")
	}
	return FromModel(costume), nil
}
