// Package result provides the Loading/Success/Error variant that every
// remote-backed query is reported through.
package result

import (
	"encoding/json"
	"fmt"
)

// Status tags which variant of a Result is live.
type Status int

const (
	StatusLoading Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is one emission of a query stream. Data is meaningful for Success,
// and for Error only when HasData is set.
type Result[T any] struct {
	Status  Status
	Data    T
	HasData bool
	Message string
}

// Loading marks a request in flight.
func Loading[T any]() Result[T] {
	return Result[T]{Status: StatusLoading}
}

// Success carries the decoded payload.
func Success[T any](data T) Result[T] {
	return Result[T]{Status: StatusSuccess, Data: data, HasData: true}
}

// Error carries a message meant for direct display.
func Error[T any](message string) Result[T] {
	return Result[T]{Status: StatusError, Message: message}
}

// ErrorWithData is an Error that still carries a payload.
func ErrorWithData[T any](message string, data T) Result[T] {
	return Result[T]{Status: StatusError, Message: message, Data: data, HasData: true}
}

func (r Result[T]) IsLoading() bool { return r.Status == StatusLoading }
func (r Result[T]) IsSuccess() bool { return r.Status == StatusSuccess }
func (r Result[T]) IsError() bool   { return r.Status == StatusError }

// IsTerminal reports whether no further emission follows on the same stream.
func (r Result[T]) IsTerminal() bool { return r.Status != StatusLoading }

// Get returns the payload and whether one is present.
func (r Result[T]) Get() (T, bool) {
	return r.Data, r.HasData
}

// Match dispatches on the variant. Every branch must be supplied; an unknown
// tag panics since it can only come from a hand-built Result.
func Match[T, R any](r Result[T], onLoading func() R, onSuccess func(T) R, onError func(message string, data *T) R) R {
	switch r.Status {
	case StatusLoading:
		return onLoading()
	case StatusSuccess:
		return onSuccess(r.Data)
	case StatusError:
		if r.HasData {
			data := r.Data
			return onError(r.Message, &data)
		}
		return onError(r.Message, nil)
	default:
		panic(fmt.Sprintf("result: unknown %v", r.Status))
	}
}

type wireResult[T any] struct {
	Status  string `json:"status"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON encodes the variant as {"status", "data", "message"}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	w := wireResult[T]{Status: r.Status.String(), Message: r.Message}
	if r.HasData {
		data := r.Data
		w.Data = &data
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (r *Result[T]) UnmarshalJSON(b []byte) error {
	var w wireResult[T]
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Status {
	case "loading":
		*r = Loading[T]()
	case "success":
		var data T
		if w.Data != nil {
			data = *w.Data
		}
		*r = Success(data)
	case "error":
		if w.Data != nil {
			*r = ErrorWithData(w.Message, *w.Data)
		} else {
			*r = Error[T](w.Message)
		}
	default:
		return fmt.Errorf("unknown result status %q", w.Status)
	}
	return nil
}

// Drain reads a stream until it closes and returns the last emission.
// ok is false if the stream closed without any terminal value.
func Drain[T any](stream <-chan Result[T]) (last Result[T], ok bool) {
	for r := range stream {
		last = r
		ok = r.IsTerminal()
	}
	return last, ok
}
