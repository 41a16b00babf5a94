package command

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/canvasinfo/canvasinfo/config"
	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/internal/domain/shared"
	"github.com/canvasinfo/canvasinfo/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY COURSE COMMAND
// Checks base URL, access token, course id and group category against Canvas
// without writing anything.
// ══════════════════════════════════════════════════════════════════════════════

// VerifyCourseCommand contains the settings to verify.
type VerifyCourseCommand struct {
	Course config.Course
}

// VerifyCourseResult contains what Canvas reported for the settings.
type VerifyCourseResult struct {
	// User is the name of the token owner.
	User string

	Course roster.Course

	// Categories are the group sets of the course.
	Categories []string
}

// AccountChecker checks that the base URL and access token work.
// canvas.Client implements it.
type AccountChecker interface {
	Ping(ctx context.Context) (string, error)
}

// VerifyCourseHandler handles the VerifyCourseCommand.
type VerifyCourseHandler struct {
	account  AccountChecker
	source   roster.CourseSource
	reporter Reporter
	logger   *logger.Logger
}

// NewVerifyCourseHandler creates a new VerifyCourseHandler.
func NewVerifyCourseHandler(account AccountChecker, source roster.CourseSource, reporter Reporter, log *logger.Logger) *VerifyCourseHandler {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &VerifyCourseHandler{
		account:  account,
		source:   source,
		reporter: reporter,
		logger:   log.With(logger.Component("verify")),
	}
}

// Handle runs the checks in order and stops at the first failure.
func (h *VerifyCourseHandler) Handle(ctx context.Context, cmd VerifyCourseCommand) (*VerifyCourseResult, error) {
	if err := cmd.Course.ValidateConnection(); err != nil {
		h.reporter.Error(err.Error())
		return nil, fmt.Errorf("verify_course: validation failed: %w", err)
	}
	courseID, _ := cmd.Course.ID()

	h.reporter.Info("Verifying...")
	result := &VerifyCourseResult{}

	user, err := h.account.Ping(ctx)
	if err != nil {
		if shared.IsUnauthorized(err) {
			h.reporter.Error("Verifying Access Token: Failed")
		} else {
			h.reporter.Error("Verifying Base URL: Failed")
		}
		return nil, fmt.Errorf("verify_course: %w", err)
	}
	result.User = user
	h.reporter.Info("Verifying Base URL: Successful")
	h.reporter.Info("Verifying Access Token: Successful")

	course, err := h.source.Course(ctx, courseID)
	if err != nil {
		h.reporter.Error("Verifying Course ID: Failed")
		return nil, fmt.Errorf("verify_course: %w", err)
	}
	result.Course = course
	h.reporter.Info("Verifying Course ID: Successful")
	h.reporter.Info("Course: " + course.Name)

	categories, err := h.source.GroupCategories(ctx, course)
	if err != nil {
		h.reporter.Error("Loading group categories: Failed")
		return nil, fmt.Errorf("verify_course: %w", err)
	}
	result.Categories = categories
	if len(categories) == 0 {
		h.reporter.Warn("The course has no group categories.")
	} else {
		h.reporter.Info("Group categories: " + strings.Join(categories, ", "))
	}

	if want := cmd.Course.GroupCategory; want != "" {
		if !slices.Contains(categories, want) {
			h.reporter.Error("Verifying Group Category: Failed")
			return result, shared.NewDomainError("verify", "Handle", shared.ErrNotFound,
				fmt.Sprintf("group category %q does not exist", want))
		}
		h.reporter.Info("Verifying Group Category: Successful")
	}

	h.logger.Info("course verified",
		logger.CourseID(course.ID),
		logger.String("course_name", course.Name),
		logger.Int("categories", len(categories)),
	)
	h.reporter.Info("All settings successfully verified")
	return result, nil
}
