/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package geotab

import (
	"errors"
	"fmt"
)

var (
	// ErrDBUnavailable is returned when the platform database is offline.
	ErrDBUnavailable = errors.New("database unavailable")
	// ErrOverLimit is returned when the API rate limit is exceeded.
	ErrOverLimit = errors.New("over limit")
	// ErrInvalidUser is returned when credentials or the session are rejected.
	ErrInvalidUser = errors.New("invalid user")
	// ErrTransport wraps network failures, 5xx responses and an open circuit.
	ErrTransport = errors.New("transport failure")

	errCircuitOpen          = errors.New("circuit breaker is open")
	errUnexpectedStatusCode = errors.New("unexpected status code")
	errServerError          = errors.New("server error")
	errClientClosed         = errors.New("client closed")
	errMissingServer        = errors.New("server is required")
	errMissingDatabase      = errors.New("database is required")
	errMissingUser          = errors.New("user is required")
	errEmptyResult          = errors.New("empty result")
)

const (
	exceptionDBUnavailable = "DbUnavailableException"
	exceptionOverLimit     = "OverLimitException"
	exceptionInvalidUser   = "InvalidUserException"
)

// APIError is an error envelope returned by the platform.
type APIError struct {
	Method  string
	Name    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Method, e.Name, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Name {
	case exceptionDBUnavailable:
		return ErrDBUnavailable
	case exceptionOverLimit:
		return ErrOverLimit
	case exceptionInvalidUser:
		return ErrInvalidUser
	default:
		return nil
	}
}

func (e *APIError) DBUnavailable() bool {
	return e.Name == exceptionDBUnavailable
}

func (e *APIError) OverLimit() bool {
	return e.Name == exceptionOverLimit
}

// TransportError reports a call that never produced an API response.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Method, ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (*TransportError) Transport() bool {
	return true
}
