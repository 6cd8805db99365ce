// Package services holds the demo application's injectable services.
package services

import (
	"github.com/G1D0/routekit/internal/kernel"
)

// FooServiceID is the kernel identifier of FooService.
const FooServiceID = "FooService"

// FooService looks up people by id.
type FooService struct {
	people map[int]string
}

// NewFooService returns a service seeded with the demo data.
func NewFooService() *FooService {
	return &FooService{people: map[int]string{
		1: "Foo",
		2: "Bar",
	}}
}

// Get returns the name for id.
func (s *FooService) Get(id int) (string, bool) {
	name, ok := s.people[id]
	return name, ok
}

// Register binds the services in k.
func Register(k *kernel.Kernel) {
	k.Bind(FooServiceID, func(kernel.Resolver) (any, error) {
		return NewFooService(), nil
	})
}
