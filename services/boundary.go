package services

import (
	"gorm.io/gorm"
)

// WorkspaceBoundary 持久化与配准客户端的总装 实现workflows.Boundary
type WorkspaceBoundary struct {
	*PersistService
	*GeorefService
}

func NewWorkspaceBoundary(db *gorm.DB) *WorkspaceBoundary {
	return &WorkspaceBoundary{
		PersistService: NewPersistService(db),
		GeorefService:  NewGeorefService(db),
	}
}
