package mcp

import "github.com/mark3labs/mcp-go/mcp"

var userParam = mcp.WithString("user",
	mcp.Description("User key. Defaults to the configured default user."),
)

var categorySaveToolDef = mcp.NewTool("category_save",
	mcp.WithDescription("Create a category, or update the color of the category with the same name."),
	userParam,
	mcp.WithString("name", mcp.Required(), mcp.Description("Category name, unique per user ignoring case.")),
	mcp.WithString("color", mcp.Description("Color as #RRGGBB. Defaults to the configured category color.")),
	mcp.WithIdempotentHintAnnotation(true),
)

var categoryListToolDef = mcp.NewTool("category_list",
	mcp.WithDescription("List a user's categories ordered by name."),
	userParam,
	mcp.WithReadOnlyHintAnnotation(true),
)

var categoryDeleteToolDef = mcp.NewTool("category_delete",
	mcp.WithDescription("Delete a category. Events that used it show as uncategorized."),
	userParam,
	mcp.WithString("id", mcp.Required(), mcp.Description("Category ID.")),
	mcp.WithDestructiveHintAnnotation(true),
)

var eventAddToolDef = mcp.NewTool("event_add",
	mcp.WithDescription("Add a punctual event on one date, or a recurring event on weekdays between two dates."),
	userParam,
	mcp.WithString("title", mcp.Required(), mcp.Description("Event title.")),
	mcp.WithString("kind", mcp.Enum("punctual", "recurring"), mcp.Description("Defaults to punctual.")),
	mcp.WithString("start", mcp.Required(), mcp.Description("Start time, HH:MM.")),
	mcp.WithString("end", mcp.Required(), mcp.Description("End time, HH:MM, after start on the same day.")),
	mcp.WithString("date", mcp.Description("Punctual only: YYYY-MM-DD.")),
	mcp.WithArray("days",
		mcp.Description("Recurring only: weekday indices, 0=Monday .. 6=Sunday."),
		mcp.WithNumberItems(mcp.Min(0), mcp.Max(6)),
	),
	mcp.WithString("from", mcp.Description("Recurring only: first date, YYYY-MM-DD.")),
	mcp.WithString("until", mcp.Description("Recurring only: last date, YYYY-MM-DD.")),
	mcp.WithString("category_id", mcp.Description("Optional category ID.")),
)

var eventListToolDef = mcp.NewTool("event_list",
	mcp.WithDescription("List stored event definitions, optionally only those that can occur between two dates."),
	userParam,
	mcp.WithString("from", mcp.Description("YYYY-MM-DD")),
	mcp.WithString("to", mcp.Description("YYYY-MM-DD")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var eventDeleteToolDef = mcp.NewTool("event_delete",
	mcp.WithDescription("Delete an event definition and all of its occurrences."),
	userParam,
	mcp.WithString("id", mcp.Required(), mcp.Description("Event ID.")),
	mcp.WithDestructiveHintAnnotation(true),
)

var calendarViewToolDef = mcp.NewTool("calendar_view",
	mcp.WithDescription("Expand events into dated occurrences for a day, week, month, year or explicit range."),
	userParam,
	mcp.WithString("view", mcp.Enum("day", "week", "month", "year", "range"), mcp.Description("Defaults to week.")),
	mcp.WithString("date", mcp.Description("Anchor date, YYYY-MM-DD. Defaults to today.")),
	mcp.WithString("from", mcp.Description("Range view only: first date.")),
	mcp.WithString("to", mcp.Description("Range view only: last date.")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var calendarUpcomingToolDef = mcp.NewTool("calendar_upcoming",
	mcp.WithDescription("Occurrences later this week that have not started yet."),
	userParam,
	mcp.WithString("date", mcp.Description("Any day of the week. Defaults to today.")),
	mcp.WithNumber("limit", mcp.Description("Maximum occurrences. Defaults to the configured limit.")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var calendarHeatmapToolDef = mcp.NewTool("calendar_heatmap",
	mcp.WithDescription("Per-day occurrence counts for a year, laid out in week columns."),
	userParam,
	mcp.WithNumber("year", mcp.Description("Defaults to the current year.")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var priorityGetToolDef = mcp.NewTool("priority_get",
	mcp.WithDescription("Get the goals and top three priorities for a week."),
	userParam,
	mcp.WithString("date", mcp.Description("Any day of the week. Defaults to today.")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var prioritySaveToolDef = mcp.NewTool("priority_save",
	mcp.WithDescription("Replace the goals and top three priorities for a week."),
	userParam,
	mcp.WithString("date", mcp.Description("Any day of the week. Defaults to today.")),
	mcp.WithString("goals", mcp.Description("Free-form goals, markdown allowed.")),
	mcp.WithArray("items",
		mcp.Description("Up to three priorities."),
		mcp.MaxItems(3),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
				"done": map[string]any{"type": "boolean"},
			},
		}),
	),
	mcp.WithIdempotentHintAnnotation(true),
)

var slotSuggestToolDef = mcp.NewTool("slot_suggest",
	mcp.WithDescription("Find free slots in a week. Returns the next slot, or one per preferred weekday with all=true."),
	userParam,
	mcp.WithString("date", mcp.Description("Any day of the week to search. Defaults to today.")),
	mcp.WithArray("days",
		mcp.Description("Preferred weekdays, 0=Monday .. 6=Sunday. Empty means any day."),
		mcp.WithNumberItems(mcp.Min(0), mcp.Max(6)),
	),
	mcp.WithNumber("duration_minutes", mcp.Description("Slot length. Defaults to the configured duration.")),
	mcp.WithString("window_start", mcp.Description("HH:MM. Defaults to the configured window.")),
	mcp.WithString("window_end", mcp.Description("HH:MM. Defaults to the configured window.")),
	mcp.WithBoolean("ignore_existing", mcp.Description("Treat every day as free.")),
	mcp.WithBoolean("keep_past", mcp.Description("Search today from the window start instead of from now.")),
	mcp.WithBoolean("all", mcp.Description("Return every slot found instead of only the next one.")),
	mcp.WithBoolean("book", mcp.Description("Store the slots as punctual events titled title.")),
	mcp.WithString("title", mcp.Description("Required with book.")),
	mcp.WithString("category_id", mcp.Description("Category for booked events.")),
)

var slotBookToolDef = mcp.NewTool("slot_book",
	mcp.WithDescription("Store previously suggested slots as punctual events in one transaction."),
	userParam,
	mcp.WithString("title", mcp.Required(), mcp.Description("Title for every booked event.")),
	mcp.WithString("category_id", mcp.Description("Optional category ID.")),
	mcp.WithArray("slots",
		mcp.Required(),
		mcp.Description("Slots as returned by slot_suggest."),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start": map[string]any{"type": "string", "description": "YYYY-MM-DDTHH:MM"},
				"end":   map[string]any{"type": "string", "description": "YYYY-MM-DDTHH:MM"},
			},
			"required": []string{"start", "end"},
		}),
	),
)

var plannerExportToolDef = mcp.NewTool("planner_export",
	mcp.WithDescription("Export categories, events and priorities as jsonl, events as an ics calendar, or occurrences as an xlsx sheet."),
	userParam,
	mcp.WithBoolean("all_users", mcp.Description("jsonl only: export every user.")),
	mcp.WithString("format", mcp.Enum("jsonl", "ics", "xlsx"), mcp.Description("Defaults to the path extension, else jsonl.")),
	mcp.WithString("path", mcp.Description("Output file. Defaults to ~/.agenda/exports/<user>-<timestamp>.<format>.")),
	mcp.WithString("from", mcp.Description("xlsx only: first date. Defaults to January 1.")),
	mcp.WithString("to", mcp.Description("xlsx only: last date. Defaults to December 31.")),
)

var plannerImportToolDef = mcp.NewTool("planner_import",
	mcp.WithDescription("Import a jsonl export or an ics calendar."),
	mcp.WithString("path", mcp.Required(), mcp.Description("File to import.")),
	mcp.WithString("mode", mcp.Enum("error", "replace"), mcp.Description("Collision handling. Defaults to error.")),
	mcp.WithString("user", mcp.Description("Owner of events read from ics files.")),
)
