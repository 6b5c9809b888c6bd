package gridiron

import (
	"errors"

	"goflare.io/gridiron/internal/upstream"
)

var (
	ErrValidation      = errors.New("home and away required")
	ErrMissingTeamData = errors.New("missing team stats")
)

// UpstreamRequestError reports a failed provider call. Use errors.As to
// inspect the resource, URL and status code.
type UpstreamRequestError = upstream.RequestError
