// Package lod distributes a global resource budget across actors in
// proportion to the benefit each reports.
package lod

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Actor is one consumer of the budget.
type Actor interface {
	// Benefit is queried once per distribution and cached.
	Benefit() float64
	// SetResource offers suggested and returns what the actor took, which
	// may exceed the suggestion. maxRemaining is the budget still
	// unassigned; rel is the actor's share of the remaining benefit.
	SetResource(suggested, maxRemaining, rel float64) float64
	// IncreaseResource offers leftover budget and returns what was taken.
	IncreaseResource(offer float64) float64
}

// Allocation records one actor's outcome.
type Allocation struct {
	Actor     Actor
	Benefit   float64
	Suggested float64
	Taken     float64
}

// Result is the outcome of one distribution.
type Result struct {
	Budget      float64
	Used        float64
	Allocations []Allocation // in processing order
}

// Distribute hands out budget. Actors are visited in ascending benefit
// order (ties keep input order) so early large grants do not starve
// high-benefit actors; any remainder is then offered in reverse order.
func Distribute(actors []Actor, budget float64) Result {
	res := Result{Budget: budget}
	if len(actors) == 0 || budget <= 0 {
		return res
	}

	allocs := make([]Allocation, len(actors))
	benefits := make([]float64, len(actors))
	for i, a := range actors {
		b := a.Benefit()
		if b < 0 {
			b = 0
		}
		allocs[i] = Allocation{Actor: a, Benefit: b}
		benefits[i] = b
	}
	sort.SliceStable(allocs, func(i, j int) bool { return allocs[i].Benefit < allocs[j].Benefit })

	remaining := budget
	sumRemaining := floats.Sum(benefits)
	for i := range allocs {
		al := &allocs[i]
		rel := 0.0
		if sumRemaining > 0 {
			rel = al.Benefit / sumRemaining
		}
		al.Suggested = rel * remaining
		taken := al.Actor.SetResource(al.Suggested, remaining, rel)
		if taken < 0 {
			taken = 0
		}
		al.Taken = taken
		remaining = max(remaining-taken, 0)
		sumRemaining -= al.Benefit
		if sumRemaining < 0 {
			sumRemaining = 0
		}
	}

	for i := len(allocs) - 1; i >= 0 && remaining > 0; i-- {
		extra := allocs[i].Actor.IncreaseResource(remaining)
		if extra <= 0 {
			continue
		}
		extra = min(extra, remaining)
		allocs[i].Taken += extra
		remaining -= extra
	}

	res.Allocations = allocs
	res.Used = budget - remaining
	return res
}
