package ecs

// Each2 calls fn for every entity holding both A and B. It walks the store
// with fewer present components and probes the other. Order is unspecified;
// use an EntitySystem when table order matters.
func Each2[A, B any](sa *ComponentStore[A], sb *ComponentStore[B], fn func(Entity, *A, *B)) {
	if sa.Len() <= sb.Len() {
		sa.Each(func(e Entity, a *A) {
			if b, ok := sb.Fetch(e); ok {
				fn(e, a, b)
			}
		})
		return
	}
	sb.Each(func(e Entity, b *B) {
		if a, ok := sa.Fetch(e); ok {
			fn(e, a, b)
		}
	})
}
