// Package apierr defines the closed set of error kinds the controller
// and its collaborators raise, and the single dispatcher that maps them
// to HTTP status codes at the surface. Components return these types
// directly (result-or-error, never panic/recover for control flow) per
// the REDESIGN FLAGS: exceptions are not used for HTTP error control
// flow anywhere in this codebase.
package apierr

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NotFoundError reports an unknown run or stage.
type NotFoundError struct {
	Subsystem string
	Operand   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Subsystem, e.Operand)
}

// ConflictError reports a collision, e.g. creating a run_id that already exists.
type ConflictError struct {
	Subsystem string
	Operand   string
	Detail    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflict on %s: %s", e.Subsystem, e.Operand, e.Detail)
}

// RerunRequiredError reports that a stage has already completed and
// needs an explicit confirm_rerun=true to resubmit.
type RerunRequiredError struct {
	Stage string
}

func (e *RerunRequiredError) Error() string {
	return fmt.Sprintf("stage %q already completed; resubmit with confirm_rerun=true to rerun", e.Stage)
}

// ValidationError carries the preflight errors/warnings from the stage validator.
type ValidationError struct {
	Stage    string
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("stage %q failed validation: %v", e.Stage, e.Errors)
}

// DependencyError names the unmet prerequisite stage.
type DependencyError struct {
	Stage     string
	Dependency string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %q requires dependency %q to be completed", e.Stage, e.Dependency)
}

// SchedulerError wraps a failure from the external batch scheduler:
// non-zero exit, unparsable output, or a timeout.
type SchedulerError struct {
	Op  string
	Err error
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("scheduler: %s: %v", e.Op, e.Err)
}

func (e *SchedulerError) Unwrap() error { return e.Err }

// TemplateError reports a missing template file or an unknown placeholder
// left in a rendered script.
type TemplateError struct {
	Path   string
	Detail string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %s", e.Path, e.Detail)
}

// ConfigError reports a misconfigured install or work directory.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Detail)
}

// ServeError is the single place that maps an error kind to an HTTP
// status code and writes the JSON body, mirroring the teacher's
// switch-on-type ServeError dispatcher.
func ServeError(c *gin.Context, err error) {
	switch e := err.(type) {
	case *NotFoundError:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
	case *ConflictError:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *RerunRequiredError:
		c.JSON(http.StatusConflict, gin.H{
			"error":         e.Error(),
			"stage":         e.Stage,
			"confirm_field": "confirm_rerun",
		})
	case *ValidationError:
		c.JSON(http.StatusBadRequest, gin.H{
			"errors":   e.Errors,
			"warnings": e.Warnings,
		})
	case *DependencyError:
		c.JSON(http.StatusBadRequest, gin.H{"error": e.Error()})
	case *SchedulerError:
		c.JSON(http.StatusBadGateway, gin.H{"error": e.Error()})
	case *TemplateError:
		c.JSON(http.StatusInternalServerError, gin.H{"error": e.Error(), "path": e.Path})
	case *ConfigError:
		c.JSON(http.StatusInternalServerError, gin.H{"error": e.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
