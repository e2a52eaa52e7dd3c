package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

var registry = map[string]ErrorTemplate{
	// Socket (T001-T009)
	"T001": {
		Category:   CategorySocket,
		Message:    "Address already in use",
		Detail:     "Another process is listening on the requested address and does not share it.",
		Suggestion: "Stop the other process or choose another port with --port or TERN_PORT.",
	},
	"T002": {
		Category:   CategorySocket,
		Message:    "Permission denied binding the address",
		Detail:     "Ports below 1024 usually need elevated privileges.",
		Suggestion: "Use a port above 1024 or grant CAP_NET_BIND_SERVICE.",
	},
	"T003": {
		Category:   CategorySocket,
		Message:    "Invalid listen address",
		Detail:     "The host could not be resolved or the port is outside 0..65535.",
		Suggestion: "Use an IP address such as 0.0.0.0 or 127.0.0.1 and a valid port.",
	},
	"T009": {
		Category: CategorySocket,
		Message:  "Could not open the listening socket",
	},

	// Routing (T010-T019)
	"T010": {
		Category:   CategoryRouting,
		Message:    "Route conflict",
		Detail:     "Two routes for the same method use different parameter names at the same position.",
		Suggestion: "Use the same parameter name in both patterns.",
	},
	"T011": {
		Category:   CategoryRouting,
		Message:    "Malformed route pattern",
		Detail:     "Patterns start with /, name every :param and place *wildcard last.",
		Suggestion: "Check the pattern, for example /users/:id or /files/*path.",
	},

	// Config (T020-T029)
	"T020": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration",
		Suggestion: "Fix the listed fields in tern.yaml or the TERN_* environment.",
	},

	// Runtime (T030-T039)
	"T030": {
		Category: CategoryRuntime,
		Message:  "Startup hook failed",
	},
	"T031": {
		Category: CategoryRuntime,
		Message:  "Server stopped with an error",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
