package handlers

import (
	"errors"
	"net/http"
	"strings"

	"todolist/internal/middleware"
	"todolist/internal/models"
	"todolist/internal/services"
	"todolist/internal/web"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const afterLoginURL = "/tasks"

type AccountHandler struct {
	db             *gorm.DB
	accountService services.AccountService
	sessionService services.SessionService
	cookie         middleware.SessionCookie
	logger         *log.Logger
}

func NewAccountHandler(db *gorm.DB, accountService services.AccountService, sessionService services.SessionService, cookie middleware.SessionCookie, logger *log.Logger) *AccountHandler {
	return &AccountHandler{
		db:             db,
		accountService: accountService,
		sessionService: sessionService,
		cookie:         cookie,
		logger:         logger,
	}
}

func (h *AccountHandler) SignupForm(c *gin.Context) {
	render(c, http.StatusOK, "signup.html", web.Page{Title: "Sign up", Form: services.SignupInput{}})
}

// Signup creates the account and signs the new user in.
func (h *AccountHandler) Signup(c *gin.Context) {
	var input services.SignupInput
	err := c.ShouldBindWith(&input, binding.Form)

	// passwords are never echoed back into the form
	page := web.Page{Title: "Sign up", Form: services.SignupInput{Username: input.Username}}

	db := h.db.WithContext(c.Request.Context())
	var user *models.User
	if err != nil {
		err = services.TranslateValidationError(err)
	} else {
		user, err = h.accountService.CreateUser(db, input)
	}
	switch {
	case err == nil:
	case errors.Is(err, services.ErrPasswordMismatch), services.IsValidationError(err):
		page.Error = err.Error()
		render(c, http.StatusBadRequest, "signup.html", page)
		return
	case errors.Is(err, services.ErrUserExists):
		page.Error = err.Error()
		render(c, http.StatusConflict, "signup.html", page)
		return
	default:
		renderServerError(c, h.logger, "failed to create user", err)
		return
	}

	h.logger.Info("user signed up", "user_id", user.ID)
	if !h.startSession(c, db, user.ID) {
		return
	}
	c.Redirect(http.StatusFound, afterLoginURL)
}

func (h *AccountHandler) SigninForm(c *gin.Context) {
	render(c, http.StatusOK, "signin.html", web.Page{
		Title: "Sign in",
		Next:  c.Query("next"),
		Form:  services.SigninInput{},
	})
}

func (h *AccountHandler) Signin(c *gin.Context) {
	next := c.PostForm("next")
	var input services.SigninInput
	if err := c.ShouldBindWith(&input, binding.Form); err != nil {
		render(c, http.StatusBadRequest, "signin.html", web.Page{
			Title: "Sign in",
			Error: services.TranslateValidationError(err).Error(),
			Next:  next,
			Form:  services.SigninInput{},
		})
		return
	}

	db := h.db.WithContext(c.Request.Context())
	user, err := h.accountService.Authenticate(db, input.Username, input.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			render(c, http.StatusUnauthorized, "signin.html", web.Page{
				Title: "Sign in",
				Error: err.Error(),
				Next:  next,
				Form:  services.SigninInput{Username: input.Username},
			})
			return
		}
		renderServerError(c, h.logger, "failed to authenticate user", err)
		return
	}

	if !h.startSession(c, db, user.ID) {
		return
	}
	c.Redirect(http.StatusFound, safeRedirect(next))
}

// Signout ends the current session and returns to the home page.
func (h *AccountHandler) Signout(c *gin.Context) {
	if token, err := c.Cookie(h.cookie.Name); err == nil && token != "" {
		if err := h.sessionService.Logout(h.db.WithContext(c.Request.Context()), token); err != nil {
			h.logger.Error("failed to delete session", "err", err)
		}
	}
	middleware.ClearSessionCookie(c, h.cookie)
	c.Redirect(http.StatusFound, "/")
}

func (h *AccountHandler) startSession(c *gin.Context, db *gorm.DB, userID uuid.UUID) bool {
	token, expiresAt, err := h.sessionService.Login(db, userID)
	if err != nil {
		renderServerError(c, h.logger, "failed to start session", err)
		return false
	}
	middleware.SetSessionCookie(c, h.cookie, token, expiresAt)
	return true
}

// safeRedirect only follows local paths; anything else lands on the task list.
func safeRedirect(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return afterLoginURL
	}
	return next
}
