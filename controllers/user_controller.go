package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/radiocms/models"
	"github.com/cppla/radiocms/utils"
)

// UserController is the administrator's user management.
type UserController struct {
	db *gorm.DB
}

// NewUserController creates a UserController.
func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db}
}

// List returns every user ordered by name, then email.
func (u *UserController) List(ctx *gin.Context) {
	var users []models.User
	if err := u.db.Order("name ASC").Order("email ASC").Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to retrieve users")
		return
	}
	items := make([]gin.H, 0, len(users))
	for _, user := range users {
		items = append(items, userResponse(user))
	}
	utils.Success(ctx, gin.H{"items": items})
}

// ToggleRole adds the role when missing and removes it when present.
func (u *UserController) ToggleRole(ctx *gin.Context) {
	role := ctx.Param("role")
	if !models.ValidRole(role) {
		utils.Error(ctx, http.StatusBadRequest, 40050, "unknown role")
		return
	}
	user, ok := u.load(ctx)
	if !ok {
		return
	}
	if pr, _ := getPrincipal(ctx); pr.UserID == user.ID && role == models.RoleAdmin && user.HasRole(role) {
		utils.Error(ctx, http.StatusConflict, 40950, "cannot drop your own administrador role")
		return
	}

	user.ToggleRole(role)
	if err := u.db.Model(user).Update("roles", user.Roles).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to update roles")
		return
	}
	utils.Sugar.Infof("user %d roles now %v", user.ID, []string(user.Roles))
	utils.Success(ctx, userResponse(*user))
}

// ToggleActive enables or disables an account.
func (u *UserController) ToggleActive(ctx *gin.Context) {
	user, ok := u.load(ctx)
	if !ok {
		return
	}
	if pr, _ := getPrincipal(ctx); pr.UserID == user.ID {
		utils.Error(ctx, http.StatusConflict, 40951, "cannot deactivate yourself")
		return
	}
	next := !user.IsActive
	if err := u.db.Model(user).Update("is_active", next).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to update user")
		return
	}
	user.IsActive = next
	utils.Success(ctx, userResponse(*user))
}

func (u *UserController) load(ctx *gin.Context) (*models.User, bool) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return nil, false
	}
	var user models.User
	if err := u.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to get user")
		return nil, false
	}
	return &user, true
}
