// Package mutators holds the named write operations clients invoke through the
// sync push endpoint. Each mutator is a function of (tx, args) only, so the
// same body can run optimistically in a client cache and authoritatively here.
package mutators

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/records"
)

// Func is a typed mutator body.
type Func[T any] func(ctx context.Context, tx records.Tx, args T) error

type entry struct {
	apply func(ctx context.Context, tx records.Tx, raw json.RawMessage) error
}

// Registry maps mutator names to handlers.
type Registry struct {
	validate *validator.Validate
	entries  map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Registry{validate: v, entries: make(map[string]entry)}
}

// Register adds a typed mutator. Payloads are decoded strictly into T and
// validated before fn runs. It panics if name is already registered.
func Register[T any](r *Registry, name string, fn Func[T]) {
	if _, dup := r.entries[name]; dup {
		panic("mutators: duplicate mutator " + name)
	}
	r.entries[name] = entry{apply: func(ctx context.Context, tx records.Tx, raw json.RawMessage) error {
		var args T
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&args); err != nil {
			return apperr.Validation(fmt.Sprintf("%s: invalid arguments: %v", name, err))
		}
		if err := r.validate.Struct(args); err != nil {
			return apperr.Validation(fmt.Sprintf("%s: %s", name, describe(err)))
		}
		return fn(ctx, tx, args)
	}}
}

// Apply runs the named mutator inside tx.
func (r *Registry) Apply(ctx context.Context, tx records.Tx, name string, args json.RawMessage) error {
	e, ok := r.entries[name]
	if !ok {
		return apperr.Validation(fmt.Sprintf("unknown mutator %q", name))
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return e.apply(ctx, tx, args)
}

// Names returns the registered mutator names sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// Default returns the registry with every clinic mutator.
func Default() *Registry {
	r := NewRegistry()

	Register(r, "patient.create", CreatePatient)
	Register(r, "patient.update", UpdatePatient)
	Register(r, "patient.delete", DeletePatient)
	Register(r, "address.update", UpdateAddress)

	Register(r, "dentist.create", CreateDentist)
	Register(r, "dentist.update", UpdateDentist)
	Register(r, "dentist.delete", DeleteDentist)

	Register(r, "appointment.create", CreateAppointment)
	Register(r, "appointment.update", UpdateAppointment)
	Register(r, "appointment.delete", DeleteAppointment)

	Register(r, "clinicalNote.create", CreateClinicalNote)
	Register(r, "clinicalNote.update", UpdateClinicalNote)
	Register(r, "clinicalNote.delete", DeleteClinicalNote)
	return r
}
