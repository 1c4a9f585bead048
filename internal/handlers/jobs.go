package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/transcriptor/internal/jobs"
	"github.com/codebuildervaibhav/transcriptor/internal/storage"
)

// JobHandler exposes the job controller over HTTP.
type JobHandler struct {
	controller *jobs.Controller
	dirs       *storage.JobDirs
}

// NewJobHandler creates the handler set for job operations.
func NewJobHandler(controller *jobs.Controller, dirs *storage.JobDirs) *JobHandler {
	return &JobHandler{
		controller: controller,
		dirs:       dirs,
	}
}

// Submit accepts a job submission and returns the new job ID immediately.
func (h *JobHandler) Submit(c *fiber.Ctx) error {
	var req jobs.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	jobID, err := h.controller.Submit(req)
	if err != nil {
		return jobError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Job submitted successfully",
		"job_id":  jobID,
	})
}

// Status returns the polling view for a job.
func (h *JobHandler) Status(c *fiber.Ctx) error {
	view, err := h.controller.Status(c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	return c.JSON(view)
}

// Result returns the full result payload; before a terminal state only the
// status fields are present.
func (h *JobHandler) Result(c *fiber.Ctx) error {
	view, err := h.controller.Result(c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	return c.JSON(view)
}

// Cancel requests cooperative cancellation.
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	if err := h.controller.Cancel(c.Params("id")); err != nil {
		return jobError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Cancellation requested",
	})
}

// Retry resubmits a failed job as a new one.
func (h *JobHandler) Retry(c *fiber.Ctx) error {
	newID, err := h.controller.Retry(c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":    "Job resubmitted",
		"new_job_id": newID,
	})
}

// Download serves one rendered file from the job's output directory.
func (h *JobHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if _, err := h.controller.Status(jobID); err != nil {
		return jobError(c, err)
	}

	path, err := h.dirs.Resolve(jobID, c.Params("filename"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "File not found",
			"code":  "ERR_FILE_NOT_FOUND",
		})
	}
	return c.Download(path)
}

// jobError maps controller errors onto HTTP responses.
func jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
			"code":  "ERR_JOB_NOT_FOUND",
		})
	case errors.Is(err, jobs.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_STATE",
		})
	case errors.Is(err, jobs.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_VALIDATION",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
			"code":  "ERR_INTERNAL",
		})
	}
}
