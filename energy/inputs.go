package energy

// Inputs caches the energy ports a consumer draws from, in match order.
// The ports are not owned; the cache is rebuilt whenever the structure
// providing them is validated and cleared when it breaks.
type Inputs struct {
	ports []Port
}

// Invalidate clears the cache.
func (in *Inputs) Invalidate() {
	clear(in.ports)
	in.ports = in.ports[:0]
}

// Rebuild replaces the cache with ports, keeping their order.
func (in *Inputs) Rebuild(ports []Port) {
	in.Invalidate()
	in.ports = append(in.ports, ports...)
}

// Len returns the number of cached ports.
func (in *Inputs) Len() int {
	return len(in.ports)
}

// Valid reports whether any port is cached.
func (in *Inputs) Valid() bool {
	return len(in.ports) > 0
}

// Consume draws up to max across the cached ports in order, asking each for
// what is still missing. The result never exceeds max, and with simulate set
// no port is modified.
func (in *Inputs) Consume(max int64, simulate bool) int64 {
	if max <= 0 {
		return 0
	}

	var total int64
	for _, p := range in.ports {
		remaining := max - total
		if remaining <= 0 {
			break
		}
		got := p.ConsumeEnergy(remaining, simulate)
		if got <= 0 {
			continue
		}
		total += min(got, remaining)
	}
	return total
}
