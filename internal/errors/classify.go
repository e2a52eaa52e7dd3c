package errors

import (
	stderrors "errors"

	"github.com/tern-dev/tern"
	"github.com/tern-dev/tern/internal/config"
	"github.com/tern-dev/tern/pkg/router"
	"github.com/tern-dev/tern/pkg/socket"
)

// Classify converts err to a TernError. Errors it does not recognize
// become uncoded runtime errors.
func Classify(err error) *TernError {
	var te *TernError
	if stderrors.As(err, &te) {
		return te
	}

	var be *socket.BindError
	if stderrors.As(err, &be) {
		var code string
		switch be.Kind {
		case socket.KindAddressInUse:
			code = "T001"
		case socket.KindPermissionDenied:
			code = "T002"
		case socket.KindInvalidAddress:
			code = "T003"
		default:
			code = "T009"
		}
		return New(code).Wrap(err)
	}

	var ce *router.ConflictError
	if stderrors.As(err, &ce) {
		if stderrors.Is(ce, router.ErrMalformedPattern) {
			return New("T011").Wrap(err).WithExample("app.Get(\"/users/:id\", show)\napp.Get(\"/files/*path\", serve)")
		}
		return New("T010").Wrap(err)
	}

	switch {
	case stderrors.Is(err, config.ErrInvalid):
		return New("T020").Wrap(err).WithExample("server:\n  host: 0.0.0.0\n  port: 8080\n  workers: 4")
	case stderrors.Is(err, tern.ErrStartupHook):
		return New("T030").Wrap(err)
	}

	return &TernError{
		Category: CategoryRuntime,
		Message:  err.Error(),
	}
}
