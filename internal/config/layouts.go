package config

// Predefined layouts.
var (
	// LayoutFlat: one fast region and a general purpose pool.
	LayoutFlat = Layout{
		Name: "flat",
		Regions: []Region{
			{Name: "fast", Size: 16 << 20, Attributes: []string{"public", "fast", "31bit"}},
		},
		Pools: []Pool{
			{Name: "default", PuddleSize: 16 << 10, Threshold: 4 << 10, Requirements: []string{"public", "sem_protected"}},
		},
	}

	// LayoutAmiga: a small DMA-reachable chip region below a larger fast
	// region, with one pool per memory type.
	LayoutAmiga = Layout{
		Name: "amiga",
		Regions: []Region{
			{Name: "chip", Size: 2 << 20, Attributes: []string{"public", "chip", "24bitdma"}, Priority: -10},
			{Name: "fast", Size: 8 << 20, Attributes: []string{"public", "fast", "31bit"}},
		},
		Pools: []Pool{
			{Name: "default", PuddleSize: 16 << 10, Threshold: 4 << 10, Requirements: []string{"public", "sem_protected"}},
			{Name: "chip", PuddleSize: 8 << 10, Threshold: 2 << 10, Requirements: []string{"public", "chip", "sem_protected"}},
		},
	}

	// LayoutDebug: LayoutFlat with boundary walls around pooled blocks.
	LayoutDebug = Layout{
		Name:  "debug",
		Walls: true,
		Regions: []Region{
			{Name: "fast", Size: 4 << 20, Attributes: []string{"public", "fast"}},
		},
		Pools: []Pool{
			{Name: "default", PuddleSize: 4 << 10, Threshold: 1 << 10, Requirements: []string{"public", "sem_protected"}},
		},
	}

	// Default is used when no layout file is given.
	Default = LayoutAmiga
)

// Named returns a copy of the predefined layout called name.
func Named(name string) (Layout, bool) {
	for _, l := range []Layout{LayoutFlat, LayoutAmiga, LayoutDebug} {
		if l.Name == name {
			return l, true
		}
	}
	return Layout{}, false
}
