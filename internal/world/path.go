package world

// PlanSteps returns the straight 8-direction step list from from to to on a
// map of the given side. Diagonal steps are taken while both axes differ.
// The list is empty when the points are equal or to is off the map.
func PlanSteps(from, to Point, side int) []WalkStep {
	if int(to.X) >= side || int(to.Y) >= side {
		return nil
	}
	n := from.ChebyshevDistance(to)
	steps := make([]WalkStep, 0, n)
	cur := from
	for cur != to {
		d, ok := DirectionTo(cur, to)
		if !ok {
			break
		}
		nxt, ok := cur.Step(d, side)
		if !ok {
			break
		}
		steps = append(steps, WalkStep{Dir: d, To: nxt})
		cur = nxt
	}
	return steps
}
