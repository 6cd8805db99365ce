// Package controllers holds the demo application's HTTP controllers.
package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/G1D0/routekit/internal/annotate"
	"github.com/G1D0/routekit/internal/app"
	"github.com/G1D0/routekit/internal/kernel"
	"github.com/G1D0/routekit/internal/observe"
	"github.com/G1D0/routekit/internal/registry"
	"github.com/G1D0/routekit/internal/router"
	"github.com/G1D0/routekit/internal/services"
)

// FooControllerID is the registry and kernel identifier of FooController.
const FooControllerID = "FooController"

var errMissingID = errors.New("missing id")

// Person is the JSON body returned for a lookup.
type Person struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// FooController serves people from a FooService.
type FooController struct {
	people *services.FooService
}

// NewFooController creates the controller.
func NewFooController(people *services.FooService) *FooController {
	return &FooController{people: people}
}

// Index looks up the person given by the id query parameter.
func (c *FooController) Index(w http.ResponseWriter, r *http.Request) (any, error) {
	id := r.URL.Query().Get("id")
	observe.LoggerFrom(r.Context()).Info("getting person", "id", id)
	return c.lookup(id)
}

// Show looks up the person given by the id path parameter.
func (c *FooController) Show(w http.ResponseWriter, r *http.Request) (any, error) {
	return c.lookup(router.Params(r).ByName("id"))
}

func (c *FooController) lookup(raw string) (any, error) {
	if raw == "" {
		return nil, app.Error(http.StatusBadRequest, errMissingID)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, app.Error(http.StatusBadRequest, fmt.Errorf("invalid id %q", raw))
	}
	name, ok := c.people.Get(id)
	if !ok {
		return nil, app.Error(http.StatusNotFound, fmt.Errorf("person %d not found", id))
	}
	return Person{ID: id, Name: name}, nil
}

// Register binds the controllers in k and describes their routes in reg.
func Register(reg *registry.Registry, k *kernel.Kernel) {
	k.Bind(FooControllerID, func(r kernel.Resolver) (any, error) {
		people, err := kernel.ResolveAs[*services.FooService](r, services.FooServiceID)
		if err != nil {
			return nil, err
		}
		return NewFooController(people), nil
	})

	annotate.For[*FooController](reg, FooControllerID).
		Controller("/foo").
		Get("/", (*FooController).Index).
		Get("/:id", (*FooController).Show)
}
