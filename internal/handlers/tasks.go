package handlers

import (
	"errors"
	"net/http"

	"todolist/internal/middleware"
	"todolist/internal/services"
	"todolist/internal/web"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	createErrorMessage = "Please provide valid data"
	updateErrorMessage = "Error updating task"
)

type TaskHandler struct {
	db          *gorm.DB
	taskService services.TaskService
	logger      *log.Logger
}

func NewTaskHandler(db *gorm.DB, taskService services.TaskService, logger *log.Logger) *TaskHandler {
	return &TaskHandler{db: db, taskService: taskService, logger: logger}
}

func (h *TaskHandler) conn(c *gin.Context) *gorm.DB {
	return h.db.WithContext(c.Request.Context())
}

// taskID parses the :id path parameter. A malformed id is reported as not
// found, like any other id the user does not own.
func taskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func (h *TaskHandler) ListPending(c *gin.Context) {
	tasks, err := h.taskService.ListPending(h.conn(c), middleware.PrincipalFrom(c))
	if err != nil {
		renderServerError(c, h.logger, "failed to list pending tasks", err)
		return
	}
	render(c, http.StatusOK, "tasks.html", web.Page{Title: "Tasks", Tasks: tasks})
}

func (h *TaskHandler) ListCompleted(c *gin.Context) {
	tasks, err := h.taskService.ListCompleted(h.conn(c), middleware.PrincipalFrom(c))
	if err != nil {
		renderServerError(c, h.logger, "failed to list completed tasks", err)
		return
	}
	render(c, http.StatusOK, "tasks.html", web.Page{Title: "Completed tasks", Tasks: tasks, Completed: true})
}

func (h *TaskHandler) CreateForm(c *gin.Context) {
	render(c, http.StatusOK, "create_task.html", web.Page{Title: "New task", Form: services.TaskInput{}})
}

func (h *TaskHandler) Create(c *gin.Context) {
	var input services.TaskInput
	err := c.ShouldBindWith(&input, binding.Form)
	if err != nil {
		err = services.TranslateValidationError(err)
	} else {
		_, err = h.taskService.Create(h.conn(c), middleware.PrincipalFrom(c), input)
	}
	if err != nil {
		if services.IsValidationError(err) {
			render(c, http.StatusBadRequest, "create_task.html", web.Page{
				Title: "New task",
				Error: createErrorMessage,
				Form:  input,
			})
			return
		}
		renderServerError(c, h.logger, "failed to create task", err)
		return
	}
	c.Redirect(http.StatusFound, "/tasks")
}

func (h *TaskHandler) Detail(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		renderNotFound(c)
		return
	}

	task, err := h.taskService.GetOwned(h.conn(c), id, middleware.PrincipalFrom(c))
	if err != nil {
		h.handleTaskError(c, err, "failed to load task")
		return
	}

	render(c, http.StatusOK, "task_detail.html", web.Page{
		Title: task.Title,
		Task:  task,
		Form:  services.TaskInput{Title: task.Title, Description: task.Description},
	})
}

// Update saves the edit form. The task is looked up before the input is
// validated, so an unknown id is a 404 whatever was submitted.
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		renderNotFound(c)
		return
	}

	db := h.conn(c)
	owner := middleware.PrincipalFrom(c)

	var input services.TaskInput
	err := c.ShouldBindWith(&input, binding.Form)
	if err != nil {
		err = services.TranslateValidationError(err)
	} else {
		_, err = h.taskService.Update(db, id, owner, input)
	}
	if err == nil {
		c.Redirect(http.StatusFound, "/tasks")
		return
	}
	if !services.IsValidationError(err) {
		h.handleTaskError(c, err, "failed to update task")
		return
	}

	task, err := h.taskService.GetOwned(db, id, owner)
	if err != nil {
		h.handleTaskError(c, err, "failed to reload task")
		return
	}
	render(c, http.StatusBadRequest, "task_detail.html", web.Page{
		Title: task.Title,
		Error: updateErrorMessage,
		Task:  task,
		Form:  input,
	})
}

func (h *TaskHandler) Complete(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		renderNotFound(c)
		return
	}

	if _, err := h.taskService.Complete(h.conn(c), id, middleware.PrincipalFrom(c)); err != nil {
		h.handleTaskError(c, err, "failed to complete task")
		return
	}
	c.Redirect(http.StatusFound, "/tasks")
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		renderNotFound(c)
		return
	}

	if err := h.taskService.Delete(h.conn(c), id, middleware.PrincipalFrom(c)); err != nil {
		h.handleTaskError(c, err, "failed to delete task")
		return
	}
	c.Redirect(http.StatusFound, "/tasks")
}

// PostOnly answers any other method on the complete and delete actions.
// Ownership is checked first, so a task the user cannot see is still a 404.
func (h *TaskHandler) PostOnly(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		renderNotFound(c)
		return
	}

	if _, err := h.taskService.GetOwned(h.conn(c), id, middleware.PrincipalFrom(c)); err != nil {
		h.handleTaskError(c, err, "failed to load task")
		return
	}
	c.Header("Allow", http.MethodPost)
	MethodNotAllowed(c)
}

func (h *TaskHandler) handleTaskError(c *gin.Context, err error, msg string) {
	if errors.Is(err, services.ErrTaskNotFound) {
		renderNotFound(c)
		return
	}
	renderServerError(c, h.logger, msg, err)
}
