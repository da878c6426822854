package sector

import (
	"math/rand/v2"
	"testing"

	"traders-server/internal/shared/config"
)

func TestGenerateIsConnected(t *testing.T) {
	cfg := config.DefaultGameConfig()
	rng := rand.New(rand.NewPCG(7, 11))

	sectors, links := Generate(rng, cfg, 50, 2)
	if len(sectors) != 50 {
		t.Fatalf("got %d sectors, want 50", len(sectors))
	}

	adjacency := make(map[int][]int)
	directed := make(map[Link]bool)
	for _, l := range links {
		adjacency[l.From] = append(adjacency[l.From], l.To)
		directed[l] = true
	}

	for l := range directed {
		if !directed[Link{From: l.To, To: l.From}] {
			t.Errorf("lane %d->%d has no return lane", l.From, l.To)
		}
		if l.From == l.To {
			t.Errorf("self lane on sector %d", l.From)
		}
	}

	visited := map[int]bool{1: true}
	queue := []int{1}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	if len(visited) != 50 {
		t.Errorf("reached %d sectors from sector 1, want 50", len(visited))
	}
}

func TestGenerateStarbaseAndStock(t *testing.T) {
	cfg := config.DefaultGameConfig()
	sectors, _ := Generate(rand.New(rand.NewPCG(1, 2)), cfg, 30, 1)

	if !sectors[0].IsStarbase || sectors[0].PortType != PortSpecial {
		t.Errorf("sector 1 = %+v, want special starbase", sectors[0])
	}

	for _, s := range sectors[1:] {
		if s.IsStarbase {
			t.Errorf("sector %d unexpectedly a starbase", s.ID)
		}
		commodity, ok := s.PortType.Commodity()
		if !ok {
			continue
		}
		stock, _ := s.Stock(commodity)
		capacity := cfg.Commodities[commodity].Capacity
		if stock < 0 || stock > capacity {
			t.Errorf("sector %d %s stock %d outside [0, %d]", s.ID, commodity, stock, capacity)
		}
	}
}
