package connection

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/api/v1/types"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/sirupsen/logrus"
)

// Connection reads entities from and writes results to one external interface.
type Connection interface {
	Name() types.Interface
	Read(ctx context.Context, e config.Entity) (entity.Entity, error)
	Write(ctx context.Context, e config.Entity, wbs []entity.WriteBack) error
}

// Set holds one connection per interface.
type Set map[types.Interface]Connection

func NewSet(conns ...Connection) Set {
	s := make(Set, len(conns))
	for _, c := range conns {
		s[c.Name()] = c
	}
	return s
}

func (s Set) Get(i types.Interface) (Connection, error) {
	c, ok := s[i]
	if !ok {
		return nil, fmt.Errorf("no connection for interface %s", i)
	}
	return c, nil
}

// ReadErrorFunc is called for every entity that could not be read.
type ReadErrorFunc func(e config.Entity, err error)

// ReadAll reads every entity. Entities that cannot be read are returned with
// their configured default values marked as unavailable and reported to
// onError, or logged when onError is nil.
func (s Set) ReadAll(ctx context.Context, entities []config.Entity, onError ReadErrorFunc) []entity.Entity {
	if onError == nil {
		onError = logReadError
	}
	out := make([]entity.Entity, 0, len(entities))
	for _, e := range entities {
		c, err := s.Get(e.Interface)
		if err == nil {
			var read entity.Entity
			read, err = c.Read(ctx, e)
			if err == nil {
				out = append(out, read)
				continue
			}
		}
		onError(e, err)
		out = append(out, Unavailable(e))
	}
	return out
}

func logReadError(e config.Entity, err error) {
	logrus.WithFields(logrus.Fields{
		"entity":    e.ID,
		"interface": e.Interface,
	}).Errorf("error reading entity: %s", err)
}

// Dispatch groups write-backs by entity and writes them to the owning interfaces.
func (s Set) Dispatch(ctx context.Context, svc *config.ServiceConfig, wbs []entity.WriteBack) error {
	var errs []error
	for id, group := range entity.GroupByEntity(wbs) {
		e, ok := svc.Entity(id)
		if !ok {
			errs = append(errs, fmt.Errorf("write-back for undeclared entity %s", id))
			continue
		}
		c, err := s.Get(e.Interface)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := c.Write(ctx, e, group); err != nil {
			errs = append(errs, fmt.Errorf("error writing entity %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s Set) Close() error {
	var errs []error
	for _, c := range s {
		if closer, ok := c.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

// Unavailable returns e with the configured default values and no available data.
func Unavailable(e config.Entity) entity.Entity {
	out := entity.Entity{ID: e.ID, Attributes: make([]entity.Attribute, 0, len(e.Attributes))}
	for _, a := range e.Attributes {
		out.Attributes = append(out.Attributes, entity.Attribute{
			ID:   a.ID,
			Data: a.Value,
			Unit: a.Unit,
		})
	}
	return out
}
