package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/ops"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db    *sql.DB
	cfg   *config.Config
	clock timeutil.Clock
}

// NewHandlers creates a new Handlers instance. A nil clock uses the system clock.
func NewHandlers(db *sql.DB, cfg *config.Config, clock timeutil.Clock) *Handlers {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Handlers{db: db, cfg: cfg, clock: clock}
}

// Request types for each tool

// CategorySaveRequest represents the arguments for category_save.
type CategorySaveRequest struct {
	User  string `json:"user,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// UserRequest is used by tools that only take a user.
type UserRequest struct {
	User string `json:"user,omitempty"`
}

// IDRequest addresses a category or event by ID.
type IDRequest struct {
	User string `json:"user,omitempty"`
	ID   string `json:"id"`
}

// EventAddRequest represents the arguments for event_add.
type EventAddRequest struct {
	User       string  `json:"user,omitempty"`
	Title      string  `json:"title"`
	Kind       string  `json:"kind,omitempty"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Date       string  `json:"date,omitempty"`
	Days       []int   `json:"days,omitempty"`
	From       string  `json:"from,omitempty"`
	Until      string  `json:"until,omitempty"`
	CategoryID *string `json:"category_id,omitempty"`
}

// EventListRequest represents the arguments for event_list.
type EventListRequest struct {
	User string `json:"user,omitempty"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// CalendarViewRequest represents the arguments for calendar_view.
type CalendarViewRequest struct {
	User string `json:"user,omitempty"`
	View string `json:"view,omitempty"`
	Date string `json:"date,omitempty"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// UpcomingRequest represents the arguments for calendar_upcoming.
type UpcomingRequest struct {
	User  string `json:"user,omitempty"`
	Date  string `json:"date,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// HeatmapRequest represents the arguments for calendar_heatmap.
type HeatmapRequest struct {
	User string `json:"user,omitempty"`
	Year int    `json:"year,omitempty"`
}

// PriorityGetRequest represents the arguments for priority_get.
type PriorityGetRequest struct {
	User string `json:"user,omitempty"`
	Date string `json:"date,omitempty"`
}

// PrioritySaveRequest represents the arguments for priority_save.
type PrioritySaveRequest struct {
	User  string            `json:"user,omitempty"`
	Date  string            `json:"date,omitempty"`
	Goals string            `json:"goals,omitempty"`
	Items []db.PriorityItem `json:"items,omitempty"`
}

// SlotSuggestRequest represents the arguments for slot_suggest.
type SlotSuggestRequest struct {
	User            string  `json:"user,omitempty"`
	Date            string  `json:"date,omitempty"`
	Days            []int   `json:"days,omitempty"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	WindowStart     string  `json:"window_start,omitempty"`
	WindowEnd       string  `json:"window_end,omitempty"`
	IgnoreExisting  bool    `json:"ignore_existing,omitempty"`
	KeepPast        bool    `json:"keep_past,omitempty"`
	All             bool    `json:"all,omitempty"`
	Book            bool    `json:"book,omitempty"`
	Title           string  `json:"title,omitempty"`
	CategoryID      *string `json:"category_id,omitempty"`
}

// SlotBookRequest represents the arguments for slot_book.
type SlotBookRequest struct {
	User       string         `json:"user,omitempty"`
	Title      string         `json:"title"`
	CategoryID *string        `json:"category_id,omitempty"`
	Slots      []planner.Slot `json:"slots"`
}

// ExportRequest represents the arguments for planner_export.
type ExportRequest struct {
	User     string `json:"user,omitempty"`
	AllUsers bool   `json:"all_users,omitempty"`
	Format   string `json:"format,omitempty"`
	Path     string `json:"path,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// ImportRequest represents the arguments for planner_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
	User string `json:"user,omitempty"`
}

// Handler implementations

// HandleCategorySave handles the category_save tool call.
func (h *Handlers) HandleCategorySave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CategorySaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SaveCategory(ctx, h.db, h.cfg, ops.SaveCategoryInput{
		User:  input.User,
		Name:  input.Name,
		Color: input.Color,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCategoryList handles the category_list tool call.
func (h *Handlers) HandleCategoryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UserRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListCategories(ctx, h.db, h.cfg, ops.ListCategoriesInput{User: input.User})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCategoryDelete handles the category_delete tool call.
func (h *Handlers) HandleCategoryDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeleteCategory(ctx, h.db, h.cfg, ops.DeleteCategoryInput{User: input.User, ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEventAdd handles the event_add tool call.
func (h *Handlers) HandleEventAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AddEvent(ctx, h.db, h.cfg, ops.AddEventInput{
		User:       input.User,
		Title:      input.Title,
		CategoryID: input.CategoryID,
		Kind:       input.Kind,
		Start:      input.Start,
		End:        input.End,
		Date:       input.Date,
		Days:       input.Days,
		From:       input.From,
		Until:      input.Until,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEventList handles the event_list tool call.
func (h *Handlers) HandleEventList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EventListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListEvents(ctx, h.db, h.cfg, ops.ListEventsInput{
		User: input.User,
		From: input.From,
		To:   input.To,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEventDelete handles the event_delete tool call.
func (h *Handlers) HandleEventDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeleteEvent(ctx, h.db, h.cfg, ops.DeleteEventInput{User: input.User, ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCalendarView handles the calendar_view tool call.
func (h *Handlers) HandleCalendarView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CalendarViewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Calendar(ctx, h.db, h.cfg, h.clock, ops.CalendarInput{
		User: input.User,
		View: input.View,
		Date: input.Date,
		From: input.From,
		To:   input.To,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCalendarUpcoming handles the calendar_upcoming tool call.
func (h *Handlers) HandleCalendarUpcoming(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpcomingRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Upcoming(ctx, h.db, h.cfg, h.clock, ops.UpcomingInput{
		User:  input.User,
		Date:  input.Date,
		Limit: input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCalendarHeatmap handles the calendar_heatmap tool call.
func (h *Handlers) HandleCalendarHeatmap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HeatmapRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Heatmap(ctx, h.db, h.cfg, h.clock, ops.HeatmapInput{User: input.User, Year: input.Year})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePriorityGet handles the priority_get tool call.
func (h *Handlers) HandlePriorityGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PriorityGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetPriorities(ctx, h.db, h.cfg, h.clock, ops.GetPrioritiesInput{User: input.User, Date: input.Date})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePrioritySave handles the priority_save tool call.
func (h *Handlers) HandlePrioritySave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PrioritySaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SavePriorities(ctx, h.db, h.cfg, h.clock, ops.SavePrioritiesInput{
		User:  input.User,
		Date:  input.Date,
		Goals: input.Goals,
		Items: input.Items,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSlotSuggest handles the slot_suggest tool call.
func (h *Handlers) HandleSlotSuggest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SlotSuggestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Suggest(ctx, h.db, h.cfg, h.clock, ops.SuggestInput{
		User:            input.User,
		Date:            input.Date,
		Days:            input.Days,
		DurationMinutes: input.DurationMinutes,
		WindowStart:     input.WindowStart,
		WindowEnd:       input.WindowEnd,
		IgnoreExisting:  input.IgnoreExisting,
		KeepPast:        input.KeepPast,
		All:             input.All,
		Book:            input.Book,
		Title:           input.Title,
		CategoryID:      input.CategoryID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSlotBook handles the slot_book tool call.
func (h *Handlers) HandleSlotBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SlotBookRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.BookSlots(ctx, h.db, h.cfg, ops.BookSlotsInput{
		User:       input.User,
		Title:      input.Title,
		CategoryID: input.CategoryID,
		Slots:      input.Slots,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the planner_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, h.clock, ops.ExportInput{
		User:     input.User,
		AllUsers: input.AllUsers,
		Format:   input.Format,
		Path:     input.Path,
		From:     input.From,
		To:       input.To,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImport handles the planner_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Import(ctx, h.db, h.cfg, ops.ImportInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
		User: input.User,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	aErr := errors.As(err)

	var errorObj map[string]any
	if aErr.Code == errors.ErrInternal {
		errorObj = map[string]any{
			"code":    string(errors.ErrInternal),
			"message": "an internal error occurred",
			"status":  500,
		}
	} else {
		message := aErr.Message
		// Keep wrapper context such as "slots[2]: ..." added by callers.
		if err != error(aErr) {
			message = err.Error()
		}
		errorObj = map[string]any{
			"code":    string(aErr.Code),
			"message": message,
			"status":  aErr.Status,
		}
		if aErr.Details != nil {
			errorObj["details"] = aErr.Details
		}
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
