package isg

import "fmt"

// nodeID addresses a slot in the arena. The generation makes a handle to a
// freed slot distinguishable from a handle to whatever reuses that slot.
type nodeID struct {
	index uint32
	gen   uint32
}

type slot struct {
	gen    uint32
	live   bool
	record EntityRecord
	out    []nodeID // targets, in insertion order
	in     []nodeID // sources, in insertion order
}

type edgeKey struct {
	from, to nodeID
}

// graphStore is the arena plus its auxiliary indices. It has no locking of
// its own; Graph guards it. Every method leaves the indices consistent with
// the arena.
type graphStore struct {
	slots  []slot
	free   []uint32
	byFP   map[Fingerprint]nodeID
	byName map[string]map[Fingerprint]struct{}
	byFile map[string]map[Fingerprint]struct{}
	edges  map[edgeKey]RelationKind
}

func newGraphStore() *graphStore {
	return &graphStore{
		byFP:   make(map[Fingerprint]nodeID),
		byName: make(map[string]map[Fingerprint]struct{}),
		byFile: make(map[string]map[Fingerprint]struct{}),
		edges:  make(map[edgeKey]RelationKind),
	}
}

func (s *graphStore) nodeCount() int { return len(s.byFP) }

func (s *graphStore) edgeCount() int { return len(s.edges) }

func (s *graphStore) lookup(fp Fingerprint) (nodeID, bool) {
	id, ok := s.byFP[fp]
	return id, ok
}

// at returns the live slot for id, or nil if id is stale.
func (s *graphStore) at(id nodeID) *slot {
	if int(id.index) >= len(s.slots) {
		return nil
	}
	sl := &s.slots[id.index]
	if !sl.live || sl.gen != id.gen {
		return nil
	}
	return sl
}

func (s *graphStore) record(id nodeID) EntityRecord {
	return s.slots[id.index].record
}

// upsert inserts rec or replaces the payload of its existing slot. Edges
// reference slots, so replacing the payload leaves them intact.
func (s *graphStore) upsert(rec EntityRecord) (nodeID, bool) {
	if id, ok := s.byFP[rec.Fingerprint]; ok {
		sl := &s.slots[id.index]
		old := sl.record
		if old.Name != rec.Name {
			removeFromIndex(s.byName, old.Name, rec.Fingerprint)
			addToIndex(s.byName, rec.Name, rec.Fingerprint)
		}
		if old.FilePath != rec.FilePath {
			removeFromIndex(s.byFile, old.FilePath, rec.Fingerprint)
			addToIndex(s.byFile, rec.FilePath, rec.Fingerprint)
		}
		sl.record = rec
		return id, false
	}

	var id nodeID
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		sl := &s.slots[idx]
		sl.live = true
		sl.record = rec
		id = nodeID{index: idx, gen: sl.gen}
	} else {
		s.slots = append(s.slots, slot{live: true, record: rec})
		id = nodeID{index: uint32(len(s.slots) - 1)}
	}
	s.byFP[rec.Fingerprint] = id
	addToIndex(s.byName, rec.Name, rec.Fingerprint)
	addToIndex(s.byFile, rec.FilePath, rec.Fingerprint)
	return id, true
}

// link sets the kind of the edge from→to, creating it if absent. It
// reports whether a new edge was created.
func (s *graphStore) link(from, to nodeID, kind RelationKind) bool {
	key := edgeKey{from: from, to: to}
	if _, ok := s.edges[key]; ok {
		s.edges[key] = kind
		return false
	}
	s.edges[key] = kind
	s.slots[from.index].out = append(s.slots[from.index].out, to)
	s.slots[to.index].in = append(s.slots[to.index].in, from)
	return true
}

// unlink removes the edge from→to if present.
func (s *graphStore) unlink(from, to nodeID) bool {
	key := edgeKey{from: from, to: to}
	if _, ok := s.edges[key]; !ok {
		return false
	}
	delete(s.edges, key)
	fs := &s.slots[from.index]
	fs.out = removeID(fs.out, to)
	ts := &s.slots[to.index]
	ts.in = removeID(ts.in, from)
	return true
}

// remove drops every edge touching id, its index entries, and tombstones the
// slot. The generation bump invalidates outstanding handles before the slot
// is handed out again.
func (s *graphStore) remove(id nodeID) {
	sl := &s.slots[id.index]
	for _, to := range append([]nodeID(nil), sl.out...) {
		s.unlink(id, to)
	}
	for _, from := range append([]nodeID(nil), sl.in...) {
		s.unlink(from, id)
	}
	rec := sl.record
	delete(s.byFP, rec.Fingerprint)
	removeFromIndex(s.byName, rec.Name, rec.Fingerprint)
	removeFromIndex(s.byFile, rec.FilePath, rec.Fingerprint)

	sl.live = false
	sl.gen++
	sl.record = EntityRecord{}
	sl.out = nil
	sl.in = nil
	s.free = append(s.free, id.index)
}

// validate checks every structural invariant and returns the first violation.
func (s *graphStore) validate() error {
	live := 0
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.live {
			continue
		}
		live++
		id := nodeID{index: uint32(i), gen: sl.gen}
		fp := sl.record.Fingerprint
		if got, ok := s.byFP[fp]; !ok || got != id {
			return fmt.Errorf("fingerprint index: %s does not map to slot %d", fp, i)
		}
		if _, ok := s.byName[sl.record.Name][fp]; !ok {
			return fmt.Errorf("name index: %s missing under %q", fp, sl.record.Name)
		}
		if _, ok := s.byFile[sl.record.FilePath][fp]; !ok {
			return fmt.Errorf("file index: %s missing under %q", fp, sl.record.FilePath)
		}
		for _, to := range sl.out {
			if s.at(to) == nil {
				return fmt.Errorf("edge from %s points at dead slot %d", fp, to.index)
			}
			if _, ok := s.edges[edgeKey{from: id, to: to}]; !ok {
				return fmt.Errorf("adjacency of %s lists an edge with no record", fp)
			}
		}
		for _, from := range sl.in {
			if s.at(from) == nil {
				return fmt.Errorf("edge into %s comes from dead slot %d", fp, from.index)
			}
			if _, ok := s.edges[edgeKey{from: from, to: id}]; !ok {
				return fmt.Errorf("incoming adjacency of %s lists an edge with no record", fp)
			}
		}
	}
	if live != len(s.byFP) {
		return fmt.Errorf("fingerprint index has %d entries for %d live slots", len(s.byFP), live)
	}
	for fp, id := range s.byFP {
		if sl := s.at(id); sl == nil || sl.record.Fingerprint != fp {
			return fmt.Errorf("fingerprint index: %s maps to a dead or foreign slot", fp)
		}
	}
	if err := checkIndex("name", s.byName, s, func(r EntityRecord) string { return r.Name }); err != nil {
		return err
	}
	if err := checkIndex("file", s.byFile, s, func(r EntityRecord) string { return r.FilePath }); err != nil {
		return err
	}
	for key := range s.edges {
		if s.at(key.from) == nil || s.at(key.to) == nil {
			return fmt.Errorf("edge record %d->%d touches a dead slot", key.from.index, key.to.index)
		}
	}
	return nil
}

func checkIndex(label string, idx map[string]map[Fingerprint]struct{}, s *graphStore, field func(EntityRecord) string) error {
	for key, set := range idx {
		if len(set) == 0 {
			return fmt.Errorf("%s index: empty set kept for %q", label, key)
		}
		for fp := range set {
			id, ok := s.byFP[fp]
			if !ok {
				return fmt.Errorf("%s index: %q lists absent %s", label, key, fp)
			}
			if field(s.record(id)) != key {
				return fmt.Errorf("%s index: %s filed under stale key %q", label, fp, key)
			}
		}
	}
	return nil
}

func addToIndex(idx map[string]map[Fingerprint]struct{}, key string, fp Fingerprint) {
	set, ok := idx[key]
	if !ok {
		set = make(map[Fingerprint]struct{})
		idx[key] = set
	}
	set[fp] = struct{}{}
}

func removeFromIndex(idx map[string]map[Fingerprint]struct{}, key string, fp Fingerprint) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, fp)
	if len(set) == 0 {
		delete(idx, key)
	}
}

func removeID(ids []nodeID, target nodeID) []nodeID {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
