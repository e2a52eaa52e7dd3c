// Package errors renders startup failures of the tern command as coded,
// actionable terminal messages.
//
// Each error has a code (e.g., "T001") that maps to a category, a short
// message and a longer explanation:
//
//	err := errors.New("T001").
//	    WithDetail("127.0.0.1:8080 is taken").
//	    WithSuggestion("Stop the other process or pick another port with --port")
//	errors.PrintError(os.Stderr, err)
//
// Classify maps errors returned by the socket, router and config packages
// to their codes.
package errors
