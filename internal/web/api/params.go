package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// params extracts and converts request parameters
type params struct {
	req *http.Request
}

// PathParam extracts a path parameter by name
func (p params) PathParam(name string) string {
	return chi.URLParam(p.req, name)
}

// PathParamInt extracts a path parameter and converts it to int
func (p params) PathParamInt(name string) (int, error) {
	value := chi.URLParam(p.req, name)
	if value == "" {
		return 0, badRequest("missing path parameter: %s", name)
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, badRequest("invalid integer for parameter %s", name)
	}
	return i, nil
}

// QueryString returns nil when the parameter is absent
func (p params) QueryString(name string) *string {
	values, ok := p.req.URL.Query()[name]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

// QueryInt returns nil when the parameter is absent or empty
func (p params) QueryInt(name string) (*int, error) {
	value := p.req.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return nil, badRequest("invalid integer for query parameter %s", name)
	}
	return &i, nil
}

// QueryBool returns nil when the parameter is absent or empty
func (p params) QueryBool(name string) (*bool, error) {
	value := p.req.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil, badRequest("invalid boolean for query parameter %s", name)
	}
	return &b, nil
}
