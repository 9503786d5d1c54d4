package handlers

import (
	"net/http"

	"todolist/internal/middleware"
	"todolist/internal/web"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

func render(c *gin.Context, status int, name string, page web.Page) {
	page.User = middleware.PrincipalFrom(c)
	c.HTML(status, name, page)
}

func renderNotFound(c *gin.Context) {
	render(c, http.StatusNotFound, "404.html", web.Page{Title: "Not found"})
}

// renderServerError logs err and shows the generic error page.
func renderServerError(c *gin.Context, logger *log.Logger, msg string, err error) {
	logger.Error(msg, "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
	render(c, http.StatusInternalServerError, "500.html", web.Page{Title: "Error"})
}

// NotFound serves unknown routes.
func NotFound(c *gin.Context) {
	renderNotFound(c)
}

// MethodNotAllowed serves known routes requested with the wrong method.
func MethodNotAllowed(c *gin.Context) {
	render(c, http.StatusMethodNotAllowed, "405.html", web.Page{Title: "Method not allowed"})
}

func Home(c *gin.Context) {
	render(c, http.StatusOK, "home.html", web.Page{})
}
