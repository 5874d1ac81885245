package agent

import (
	"sort"
	"strings"
)

type PopulationInfo struct {
	Name        string `json:"name"`
	Shape       string `json:"shape"`
	Units       int    `json:"units"`
	Compartment string `json:"compartment"`
	Parent      string `json:"parent,omitempty"`
	Stub        bool   `json:"stub,omitempty"`
}

type ConnectionInfo struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Target string `json:"target"`
	Edges  int    `json:"edges"`
	Weight int    `json:"weight"`
	Delay  int    `json:"delay"`
}

// Topology summarises the assembled network for reporting.
type Topology struct {
	Populations []PopulationInfo `json:"populations"`
	Connections []ConnectionInfo `json:"connections"`
	Units       int              `json:"units"`
	Synapses    int              `json:"synapses"`
	// Regions counts units per top-level region name.
	Regions map[string]int `json:"regions"`
}

func (a *Agent) Topology() Topology {
	pops := a.net.Populations()
	t := Topology{
		Units:    a.net.Units(),
		Synapses: a.net.Synapses(),
		Regions:  make(map[string]int),
	}
	for _, p := range pops {
		info := PopulationInfo{
			Name:  p.Name,
			Shape: p.Shape.String(),
			Units: p.Size(),
			Stub:  p.Stub,
		}
		if !p.Stub {
			info.Compartment = p.Compartment.Name
		}
		if p.IsDendrite() {
			info.Parent = pops[p.Parent].Name
		}
		t.Populations = append(t.Populations, info)
		region, _, _ := strings.Cut(p.Name, "/")
		t.Regions[region] += p.Size()
	}
	for _, c := range a.net.Connections() {
		t.Connections = append(t.Connections, ConnectionInfo{
			Name:   c.Name,
			Source: pops[c.Source].Name,
			Target: pops[c.Target].Name,
			Edges:  c.Mask.Count(),
			Weight: c.Synapse.Weight,
			Delay:  c.Synapse.Delay,
		})
	}
	return t
}

// RegionNames lists the regions in the topology in name order.
func (t Topology) RegionNames() []string {
	names := make([]string, 0, len(t.Regions))
	for name := range t.Regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
