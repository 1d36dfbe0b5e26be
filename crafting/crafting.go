// Package crafting runs energy-consuming recipes on machines.
package crafting

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/oriumgames/mecs/internal/nbtconv"
)

var (
	// ErrUnknownRecipe is returned when a recipe id is not registered.
	ErrUnknownRecipe = errors.New("crafting: unknown recipe")
	// ErrRecipeType is returned when a recipe does not belong to the machine.
	ErrRecipeType = errors.New("crafting: recipe type mismatch")
	// ErrRecipeEnergy is returned when a recipe needs more energy per tick
	// than the machine can provide.
	ErrRecipeEnergy = errors.New("crafting: recipe energy above machine maximum")
)

// Behavior is the machine side of a crafter: where energy comes from and
// which recipes the machine runs.
type Behavior interface {
	// ConsumeEnergy draws up to max, or reports what it would draw when
	// simulate is set.
	ConsumeEnergy(max int64, simulate bool) int64
	RecipeType() string
	// BaseRecipeEnergy is the energy per tick the machine draws at least.
	BaseRecipeEnergy() int64
	// MaxRecipeEnergy is the highest energy per tick the machine accepts.
	MaxRecipeEnergy() int64
}

// Recipe is a timed recipe drawing a constant amount of energy per tick.
type Recipe struct {
	ID            string
	Type          string
	EnergyPerTick int64
	Duration      int
}

// Registry is a resource holding the known recipes by id.
type Registry struct {
	mu      sync.RWMutex
	recipes map[string]Recipe
}

// NewRegistry returns a registry holding recipes.
func NewRegistry(recipes ...Recipe) *Registry {
	r := &Registry{recipes: make(map[string]Recipe, len(recipes))}
	for _, rec := range recipes {
		r.Add(rec)
	}
	return r
}

// Add registers or replaces a recipe.
func (r *Registry) Add(rec Recipe) {
	r.mu.Lock()
	r.recipes[rec.ID] = rec
	r.mu.Unlock()
}

// Get returns the recipe with the given id.
func (r *Registry) Get(id string) (Recipe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recipes[id]
	return rec, ok
}

// ByType returns the recipes of a type sorted by id.
func (r *Registry) ByType(typ string) []Recipe {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Recipe
	for _, rec := range r.recipes {
		if rec.Type == typ {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Check reports whether b can run rec.
func Check(b Behavior, rec Recipe) error {
	if rec.Type != b.RecipeType() {
		return fmt.Errorf("%w: %s is %q, machine runs %q", ErrRecipeType, rec.ID, rec.Type, b.RecipeType())
	}
	if rec.EnergyPerTick > b.MaxRecipeEnergy() {
		return fmt.Errorf("%w: %s needs %d, maximum is %d", ErrRecipeEnergy, rec.ID, rec.EnergyPerTick, b.MaxRecipeEnergy())
	}
	return nil
}

// Cost returns the energy per tick b draws for rec.
func Cost(b Behavior, rec Recipe) int64 {
	return max(rec.EnergyPerTick, b.BaseRecipeEnergy())
}

// Crafter is the component running one recipe at a time, repeatedly.
type Crafter struct {
	RecipeID string
	Progress int
	Active   bool

	// Completed counts finished runs since the machine was created or loaded.
	Completed int

	recipe *Recipe
}

// Start switches the crafter to rec, resetting progress.
func (c *Crafter) Start(b Behavior, rec Recipe) error {
	if err := Check(b, rec); err != nil {
		return err
	}
	c.RecipeID = rec.ID
	c.recipe = &rec
	c.Progress = 0
	return nil
}

// StartID starts the recipe registered under id.
func (c *Crafter) StartID(b Behavior, reg *Registry, id string) error {
	if reg == nil {
		return fmt.Errorf("%w: %q", ErrUnknownRecipe, id)
	}
	rec, ok := reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRecipe, id)
	}
	return c.Start(b, rec)
}

// Stop clears the active recipe.
func (c *Crafter) Stop() {
	c.RecipeID = ""
	c.recipe = nil
	c.Progress = 0
}

// Result describes what a single tick did.
type Result struct {
	Toggled    bool
	Progressed bool
	Completed  bool
}

// Tick advances the active recipe by one tick when b can supply the full
// cost. A recipe restored from a tag is resolved through reg.
func (c *Crafter) Tick(b Behavior, reg *Registry) Result {
	wasActive := c.Active
	c.Active = false

	rec := c.resolve(b, reg)
	var res Result
	if rec != nil {
		cost := Cost(b, *rec)
		if b.ConsumeEnergy(cost, true) >= cost && b.ConsumeEnergy(cost, false) >= cost {
			c.Active = true
			c.Progress++
			res.Progressed = true
			if c.Progress >= rec.Duration {
				c.Progress = 0
				c.Completed++
				res.Completed = true
			}
		}
	}

	res.Toggled = wasActive != c.Active
	return res
}

// resolve returns the active recipe, looking it up by id when needed.
// Recipes that are unknown or no longer valid for b are dropped.
func (c *Crafter) resolve(b Behavior, reg *Registry) *Recipe {
	if c.RecipeID == "" {
		return nil
	}
	if c.recipe != nil && c.recipe.ID == c.RecipeID {
		return c.recipe
	}
	if reg == nil {
		return nil
	}
	rec, ok := reg.Get(c.RecipeID)
	if !ok || Check(b, rec) != nil {
		c.Stop()
		return nil
	}
	c.recipe = &rec
	return c.recipe
}

func (c *Crafter) EncodeNBT(tag map[string]any) {
	tag["recipe"] = c.RecipeID
	tag["progress"] = int32(c.Progress)
}

func (c *Crafter) DecodeNBT(tag map[string]any) {
	c.RecipeID = nbtconv.String(tag, "recipe")
	c.Progress = max(int(nbtconv.Int32(tag, "progress")), 0)
	c.recipe = nil
}

// EncodeClient adds the render state to the client sync payload.
func (c *Crafter) EncodeClient(tag map[string]any) {
	tag["isActive"] = nbtconv.BoolByte(c.Active)
}
