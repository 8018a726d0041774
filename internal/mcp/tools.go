package mcp

import "github.com/mark3labs/mcp-go/mcp"

var sessionArg = mcp.WithString("session_id",
	mcp.Required(),
	mcp.Description("Session id returned by wizard_start"),
)

var wizardStartToolDef = mcp.NewTool("wizard_start",
	mcp.WithDescription("Start a new capsule-creation session. Returns the session id and the first step."),
)

var wizardStateToolDef = mcp.NewTool("wizard_state",
	mcp.WithDescription("Show the current step, the draft (without image bytes) and any displayed errors."),
	sessionArg,
)

var wizardSetFieldToolDef = mcp.NewTool("wizard_set_field",
	mcp.WithDescription("Set one draft field. Fields: title, description, time (RFC 3339 or YYYY-MM-DD HH:MM), "+
		"vision, privacy (private|friends|public), design (see designs_list), shared_with (use values). "+
		"Setting a field never validates; wizard_next does."),
	sessionArg,
	mcp.WithString("field", mcp.Required(), mcp.Description("Field name"),
		mcp.Enum("title", "description", "time", "vision", "privacy", "design", "shared_with")),
	mcp.WithString("value", mcp.Description("New value for scalar fields")),
	mcp.WithArray("values", mcp.Description("Recipient ids for shared_with"),
		mcp.Items(map[string]any{"type": "string"})),
)

var wizardAddImageToolDef = mcp.NewTool("wizard_add_image",
	mcp.WithDescription("Add a local image or video (.jpg, .jpeg, .png, .gif, .mp4) by path. "+
		"Rejected files are reported in file_errors and not added."),
	sessionArg,
	mcp.WithString("path", mcp.Required(), mcp.Description("Path to the file")),
)

var wizardRemoveImageToolDef = mcp.NewTool("wizard_remove_image",
	mcp.WithDescription("Remove the image at index. Later images move down and keep their captions."),
	sessionArg,
	mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based image index")),
)

var wizardSetCaptionToolDef = mcp.NewTool("wizard_set_caption",
	mcp.WithDescription("Set the caption of the image at index."),
	sessionArg,
	mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based image index")),
	mcp.WithString("caption", mcp.Description("Caption text (empty clears it)")),
)

var wizardNextToolDef = mcp.NewTool("wizard_next",
	mcp.WithDescription("Validate the current step and move forward when it is valid. "+
		"On failure the step is unchanged and errors lists what to fix."),
	sessionArg,
)

var wizardBackToolDef = mcp.NewTool("wizard_back",
	mcp.WithDescription("Go back one step. Always allowed; clears displayed errors."),
	sessionArg,
)

var wizardSubmitToolDef = mcp.NewTool("wizard_submit",
	mcp.WithDescription("Create the capsule. Only available on the final step. "+
		"A failed submission keeps the draft so it can be fixed and retried."),
	sessionArg,
)

var designsListToolDef = mcp.NewTool("designs_list",
	mcp.WithDescription("List the capsule designs."),
)

var friendsListToolDef = mcp.NewTool("friends_list",
	mcp.WithDescription("List friends who can receive a shared capsule (ids for shared_with)."),
)
