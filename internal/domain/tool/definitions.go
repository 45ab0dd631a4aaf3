package tool

// AgentDefinitions returns the full tool catalogue advertised to the model:
// the desktop-automation actions plus the two control tools. The slice is
// rebuilt per call so callers may trim it. Once a task is degraded the
// iteration loop advertises ControlDefinitions instead.
func AgentDefinitions() []Definition {
	defs := make([]Definition, 0, len(computerDefinitions)+2)
	defs = append(defs, computerDefinitions...)
	defs = append(defs, setTaskStatusDefinition, createTaskDefinition)
	return defs
}

// ControlDefinitions returns only the control tools (used once desktop
// automation is disabled for a task).
func ControlDefinitions() []Definition {
	return []Definition{setTaskStatusDefinition, createTaskDefinition}
}

var computerDefinitions = []Definition{
	{
		Name:        "computer_move_mouse",
		Description: "Move the mouse cursor to the given coordinates",
		Parameters:  objectSchema(map[string]any{"coordinates": coordinatesProp}, "coordinates"),
	},
	{
		Name:        "computer_trace_mouse",
		Description: "Move the mouse along a path without holding a button",
		Parameters: objectSchema(map[string]any{
			"path": map[string]any{
				"type":        "array",
				"description": "Coordinates to move through",
				"items":       coordinatesProp,
			},
		}, "path"),
	},
	{
		Name:        "computer_click_mouse",
		Description: "Click the mouse at the given or current coordinates",
		Parameters: objectSchema(map[string]any{
			"coordinates": coordinatesProp,
			"button":      stringProp("Mouse button", "left", "right", "middle"),
			"clickCount":  integerProp("Number of clicks (2 for double-click)"),
		}, "button"),
	},
	{
		Name:        "computer_press_mouse",
		Description: "Press or release a mouse button",
		Parameters: objectSchema(map[string]any{
			"coordinates": coordinatesProp,
			"button":      stringProp("Mouse button", "left", "right", "middle"),
			"press":       stringProp("Press direction", "up", "down"),
		}, "button", "press"),
	},
	{
		Name:        "computer_drag_mouse",
		Description: "Drag the mouse along a path while holding a button",
		Parameters: objectSchema(map[string]any{
			"path": map[string]any{
				"type":        "array",
				"description": "Coordinates to move through",
				"items":       coordinatesProp,
			},
			"button": stringProp("Mouse button", "left", "right", "middle"),
		}, "path", "button"),
	},
	{
		Name:        "computer_scroll",
		Description: "Scroll at the given coordinates",
		Parameters: objectSchema(map[string]any{
			"coordinates": coordinatesProp,
			"direction":   stringProp("Scroll direction", "up", "down", "left", "right"),
			"scrollCount": integerProp("Number of scroll ticks"),
		}, "direction", "scrollCount"),
	},
	{
		Name:        "computer_type_text",
		Description: "Type a string of text",
		Parameters: objectSchema(map[string]any{
			"text":  stringProp("Text to type"),
			"delay": integerProp("Delay between keystrokes in ms"),
		}, "text"),
	},
	{
		Name:        "computer_type_keys",
		Description: "Type a sequence of keys one after another",
		Parameters: objectSchema(map[string]any{
			"keys": map[string]any{
				"type":        "array",
				"description": "Key names in order",
				"items":       map[string]any{"type": "string"},
			},
		}, "keys"),
	},
	{
		Name:        "computer_press_keys",
		Description: "Press keys together as a chord (e.g. ctrl+c)",
		Parameters: objectSchema(map[string]any{
			"keys": map[string]any{
				"type":        "array",
				"description": "Key names pressed simultaneously",
				"items":       map[string]any{"type": "string"},
			},
			"press": stringProp("Press direction", "up", "down"),
		}, "keys"),
	},
	{
		Name:        "computer_wait",
		Description: "Wait for a given duration",
		Parameters:  objectSchema(map[string]any{"duration": integerProp("Duration in ms")}, "duration"),
	},
	{
		Name:        "computer_screenshot",
		Description: "Take a screenshot of the desktop",
		Parameters:  objectSchema(map[string]any{}),
	},
	{
		Name:        "computer_cursor_position",
		Description: "Report the current cursor position",
		Parameters:  objectSchema(map[string]any{}),
	},
	{
		Name:        "computer_application",
		Description: "Open or focus an application",
		Parameters: objectSchema(map[string]any{
			"application": stringProp("Application name", "firefox", "1password", "thunderbird", "vscode", "terminal", "desktop", "directory"),
		}, "application"),
	},
	{
		Name:        "computer_read_file",
		Description: "Read a file from the desktop environment and attach it",
		Parameters:  objectSchema(map[string]any{"path": stringProp("Absolute file path")}, "path"),
	},
	{
		Name:        "computer_write_file",
		Description: "Write base64-encoded data to a file in the desktop environment",
		Parameters: objectSchema(map[string]any{
			"path": stringProp("Absolute file path"),
			"data": stringProp("Base64-encoded file content"),
		}, "path", "data"),
	},
}

var setTaskStatusDefinition = Definition{
	Name:        "set_task_status",
	Description: "Report that the task is finished, failed, or needs human help",
	Parameters: objectSchema(map[string]any{
		"status":      stringProp("Final status of the task", "completed", "failed", "needs_help"),
		"description": stringProp("Summary of the outcome or what help is needed"),
	}, "status", "description"),
}

var createTaskDefinition = Definition{
	Name:        "create_task",
	Description: "Create a follow-up task to run after this one",
	Parameters: objectSchema(map[string]any{
		"description":  stringProp("What the new task should accomplish"),
		"type":         stringProp("Task type", "immediate", "scheduled"),
		"priority":     stringProp("Task priority", "low", "medium", "high", "urgent"),
		"scheduledFor": stringProp("RFC3339 timestamp for scheduled tasks"),
	}, "description"),
}
