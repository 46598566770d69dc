package views

import (
	"github.com/GrainArc/TraceMap/services"
	"gorm.io/gorm"
)

type UserController struct {
	DB       *gorm.DB
	boundary *services.WorkspaceBoundary
}

func NewUserController(db *gorm.DB) *UserController {
	return &UserController{
		DB:       db,
		boundary: services.NewWorkspaceBoundary(db),
	}
}
