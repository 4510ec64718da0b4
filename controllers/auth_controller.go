package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cppla/radiocms/config"
	"github.com/cppla/radiocms/middleware"
	"github.com/cppla/radiocms/models"
	"github.com/cppla/radiocms/utils"
)

var providerClient = &http.Client{Timeout: 10 * time.Second}

// AuthController handles sign-in through OAuth providers and optional
// credentials, plus session endpoints.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Login verifies email and password for accounts that set a password.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid email or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid email or password")
		return
	}
	if !user.IsActive {
		utils.Error(ctx, http.StatusForbidden, 40301, "account is disabled")
		return
	}

	a.issueSession(ctx, user)
}

// Logout revokes the current token until it expires.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(utils.SessionTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current user.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	utils.Success(ctx, userResponse(user))
}

// ChangePassword sets or replaces the credentials password. Accounts that
// already have one must confirm it.
func (a *AuthController) ChangePassword(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	var req struct {
		Current string `json:"current_password"`
		New     string `json:"new_password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	if user.PasswordHash != "" && !utils.CheckPassword(user.PasswordHash, req.Current) {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "current password is incorrect")
		return
	}
	hash, err := utils.HashPassword(req.New)
	if err != nil {
		if errors.Is(err, utils.ErrWeakPassword) {
			utils.Error(ctx, http.StatusBadRequest, 40031, err.Error())
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}
	if err := a.db.Model(&user).Update("password_hash", hash).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to update password")
		return
	}
	utils.Success(ctx, gin.H{"message": "password updated"})
}

// OAuthRedirect generates a provider-specific authorization URL.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	provider := ctx.Param("provider")
	cfg, err := oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)

	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
	utils.Success(ctx, gin.H{"authorization_url": url, "state": state})
}

// OAuthCallback exchanges the authorization code for a user identity and issues a JWT.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := strings.ToLower(ctx.Param("provider"))
	code := ctx.Query("code")
	state := ctx.Query("state")
	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}
	if !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}

	cfg, err := oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	reqCtx := context.WithValue(ctx.Request.Context(), oauth2.HTTPClient, providerClient)
	token, err := cfg.Exchange(reqCtx, code)
	if err != nil {
		utils.Sugar.Warnf("oauth exchange failed provider=%s err=%v", provider, err)
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}

	info, err := fetchOAuthUser(reqCtx, provider, token)
	if err != nil {
		utils.Sugar.Warnf("oauth profile fetch failed provider=%s err=%v", provider, err)
		utils.Error(ctx, http.StatusBadGateway, 50205, "failed to load provider profile")
		return
	}

	user, err := a.findOrCreateOAuthUser(provider, info)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to persist user")
		return
	}
	if !user.IsActive {
		utils.Error(ctx, http.StatusForbidden, 40301, "account is disabled")
		return
	}

	a.issueSession(ctx, *user)
}

func (a *AuthController) issueSession(ctx *gin.Context, user models.User) {
	token, err := utils.GenerateToken(user.ID, user.Email, utils.SessionTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": userResponse(user)})
}

func oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := config.Get()
	switch strings.ToLower(provider) {
	case "github":
		if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
			return nil, fmt.Errorf("github oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/github/callback", cfg.OAuthRedirectBase),
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}, nil
	case "google":
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/google/callback", cfg.OAuthRedirectBase),
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

type oauthUser struct {
	ID     string
	Name   string
	Email  string
	Avatar string
}

func fetchOAuthUser(ctx context.Context, provider string, token *oauth2.Token) (*oauthUser, error) {
	switch provider {
	case "github":
		return fetchGitHubUser(ctx, token)
	case "google":
		return fetchGoogleUser(ctx, token)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// findOrCreateOAuthUser links a provider identity to a user. New users get no
// roles unless their email is listed in AdminEmails.
func (a *AuthController) findOrCreateOAuthUser(provider string, data *oauthUser) (*models.User, error) {
	var user models.User
	err := a.db.Where("provider = ? AND provider_id = ?", provider, data.ID).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{"image": data.Avatar}
		if data.Email != "" {
			updates["email"] = data.Email
		}
		if data.Name != "" {
			updates["name"] = data.Name
		}
		if err := a.db.Model(&user).Updates(updates).Error; err != nil {
			utils.Sugar.Warnf("refresh oauth profile user=%d err=%v", user.ID, err)
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	roles := datatypes.JSONSlice[string]{}
	if isAdminEmail(data.Email) {
		roles = append(roles, models.RoleAdmin)
	}
	user = models.User{
		Name:       fallback(data.Name, data.Email, provider+" user"),
		Email:      data.Email,
		Image:      data.Avatar,
		Roles:      roles,
		IsActive:   true,
		Provider:   provider,
		ProviderID: data.ID,
	}
	if err := a.db.Create(&user).Error; err != nil {
		return nil, err
	}
	utils.Sugar.Infof("created user id=%d provider=%s admin=%t", user.ID, provider, len(roles) > 0)
	return &user, nil
}

func getJSON(ctx context.Context, url, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := providerClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fetchGitHubUser(ctx context.Context, token *oauth2.Token) (*oauthUser, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, "https://api.github.com/user", token.AccessToken, &payload); err != nil {
		return nil, err
	}

	email := payload.Email
	if email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, "https://api.github.com/user/emails", token.AccessToken, &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}
	}

	return &oauthUser{
		ID:     fmt.Sprintf("%d", payload.ID),
		Name:   fallback(payload.Name, payload.Login),
		Email:  strings.TrimSpace(email),
		Avatar: payload.AvatarURL,
	}, nil
}

func fetchGoogleUser(ctx context.Context, token *oauth2.Token) (*oauthUser, error) {
	var payload struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, "https://www.googleapis.com/oauth2/v2/userinfo", token.AccessToken, &payload); err != nil {
		return nil, err
	}
	return &oauthUser{
		ID:     payload.ID,
		Name:   payload.Name,
		Email:  strings.TrimSpace(payload.Email),
		Avatar: payload.Picture,
	}, nil
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func isAdminEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	for _, e := range config.Get().AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}

func userResponse(user models.User) gin.H {
	roles := []string(user.Roles)
	if roles == nil {
		roles = []string{}
	}
	return gin.H{
		"id":           user.ID,
		"name":         user.Name,
		"email":        user.Email,
		"image":        user.Image,
		"roles":        roles,
		"is_active":    user.IsActive,
		"provider":     user.Provider,
		"has_password": user.PasswordHash != "",
		"created_at":   user.CreatedAt,
	}
}
