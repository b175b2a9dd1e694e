package netlist

import "strconv"

// Delta captures added and removed netlist rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

// Empty reports whether the delta has no rows at all.
func (d Delta) Empty() bool {
	return d.Added.Len() == 0 && d.Removed.Len() == 0
}

// Len counts the rows of every table.
func (t Tables) Len() int {
	return len(t.Entities) + len(t.Ports) + len(t.Decls) + len(t.Instances) + len(t.Connects) + len(t.Drivers)
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Entities = diffRows(from.Entities, to.Entities, entityKey)
	out.Ports = diffRows(from.Ports, to.Ports, portKey)
	out.Decls = diffRows(from.Decls, to.Decls, declKey)
	out.Instances = diffRows(from.Instances, to.Instances, instanceKey)
	out.Connects = diffRows(from.Connects, to.Connects, connectKey)
	out.Drivers = diffRows(from.Drivers, to.Drivers, driverKey)

	return out
}

// Row keys leave out locations: moving a line in the source is not a
// netlist change.

func entityKey(r EntityRow) string { return r.Name }

func portKey(r PortRow) string {
	return r.Entity + "|" + r.Name + "|" + r.Direction + "|" + r.Type + "|" + strconv.Itoa(r.Width) + "|" + r.Flow + "|" + r.Storage
}

func declKey(r DeclRow) string {
	return r.Entity + "|" + r.Name + "|" + r.Kind + "|" + r.Type + "|" + strconv.Itoa(r.Width) + "|" + r.Init
}

func instanceKey(r InstanceRow) string {
	return r.Entity + "|" + r.Name + "|" + r.Target
}

func connectKey(r ConnectRow) string {
	return r.Entity + "|" + r.Source + "|" + r.Sink
}

func driverKey(r DriverRow) string {
	return r.Entity + "|" + r.Signal + "|" + r.Kind
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	var diff []T
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	if diff == nil {
		diff = []T{}
	}
	return diff
}

// FilterByEntities returns a new Tables object containing only rows that
// belong to one of the named entities.
func FilterByEntities(tables Tables, entities map[string]bool) Tables {
	out := emptyTables()
	if len(entities) == 0 {
		return out
	}

	out.Entities = filterRows(tables.Entities, entities, func(r EntityRow) string { return r.Name })
	out.Ports = filterRows(tables.Ports, entities, func(r PortRow) string { return r.Entity })
	out.Decls = filterRows(tables.Decls, entities, func(r DeclRow) string { return r.Entity })
	out.Instances = filterRows(tables.Instances, entities, func(r InstanceRow) string { return r.Entity })
	out.Connects = filterRows(tables.Connects, entities, func(r ConnectRow) string { return r.Entity })
	out.Drivers = filterRows(tables.Drivers, entities, func(r DriverRow) string { return r.Entity })

	return out
}

// FilterDeltaByEntities returns a new Delta containing only rows for the
// named entities.
func FilterDeltaByEntities(delta Delta, entities map[string]bool) Delta {
	return Delta{
		Added:   FilterByEntities(delta.Added, entities),
		Removed: FilterByEntities(delta.Removed, entities),
	}
}

func filterRows[T any](rows []T, keep map[string]bool, entity func(T) string) []T {
	out := []T{}
	for _, row := range rows {
		if keep[entity(row)] {
			out = append(out, row)
		}
	}
	return out
}
