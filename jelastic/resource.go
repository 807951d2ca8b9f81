package jelastic

import (
	"context"
	"fmt"

	"github.com/crmarques/jelapi/attr"
	"github.com/crmarques/jelapi/faults"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/crmarques/jelapi/jelastic")

// resource carries the field record shared by every tree member.
type resource struct {
	record *attr.Record
}

// Field returns the in-memory value of a field. Lazy fields are not fetched.
func (r *resource) Field(name string) any {
	return r.record.Get(name)
}

// SetField assigns a field by name, enforcing read-only and type rules.
func (r *resource) SetField(name string, value any) error {
	return r.record.Set(name, value)
}

func (r *resource) ChangedFields() []string {
	return r.record.ChangedFields()
}

func (r *resource) Diverged() bool {
	return r.record.Diverged()
}

// Synced reports whether the resource is known to exist remotely.
func (r *resource) Synced() bool {
	return r.record.Synced()
}

// mustSet is used by typed setters, whose values always satisfy the schema.
func (r *resource) mustSet(name string, value any) {
	if err := r.record.Set(name, value); err != nil {
		panic(fmt.Sprintf("jelastic: typed setter for %s.%s: %v", r.record.Kind(), name, err))
	}
}

func (r *resource) mustLoad(name string, value any) {
	if err := r.record.Load(name, value); err != nil {
		panic(fmt.Sprintf("jelastic: loading %s.%s: %v", r.record.Kind(), name, err))
	}
}

type fieldValue struct {
	name  string
	value any
}

// loadAll stores remote values in order and stops at the first rejected one.
func (r *resource) loadAll(values ...fieldValue) error {
	for _, item := range values {
		if err := r.record.Load(item.name, item.value); err != nil {
			return err
		}
	}
	return nil
}

type saveSteps struct {
	// validate runs every guard of the resource and its children before
	// anything is written.
	validate func() error
	persist  func(ctx context.Context) error
}

// save runs the orchestration shared by every resource: skip when nothing
// diverged, guards, writes, convergence assertion and baseline update.
func (r *resource) save(ctx context.Context, label string, steps saveSteps) (err error) {
	if !r.record.Diverged() {
		return nil
	}

	ctx, span := tracer.Start(ctx, r.record.Kind()+".Save", trace.WithAttributes(
		attribute.String("jelastic.resource", label),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := logr.FromContextOrDiscard(ctx).WithValues("resource", label)
	ctx = logr.NewContext(ctx, logger)

	if steps.validate != nil {
		if err := steps.validate(); err != nil {
			return err
		}
	}

	logger.V(1).Info("saving", "changed", r.record.ChangedFields())
	if err := steps.persist(ctx); err != nil {
		return err
	}

	if r.record.Diverged() {
		return faults.Convergence(
			fmt.Sprintf("%s still differs from remote after save (changed: %v)", label, r.record.ChangedFields()),
			nil,
		)
	}
	r.record.TakeSnapshot()
	logger.V(1).Info("saved")
	return nil
}

func objectStateError(format string, args ...any) error {
	return faults.ObjectState(fmt.Sprintf(format, args...), nil)
}

func malformedReply(format string, args ...any) error {
	return faults.RemoteCall("malformed reply: "+fmt.Sprintf(format, args...), nil)
}
