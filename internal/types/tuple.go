package types

import (
	"fmt"

	"fortio.org/safecast"
)

// TupleInfo stores the element types of a tuple.
type TupleInfo struct {
	Elems []TypeID
}

// InternTuple interns a tuple type from its element list.
// The empty tuple is the unit type.
func (in *Interner) InternTuple(elems []TypeID) TypeID {
	// Structural identity: reuse an existing tuple with the same elements.
	for payload := 1; payload < len(in.tuples); payload++ {
		if sameTypeList(in.tuples[payload].Elems, elems) {
			p, err := safecast.Conv[uint32](payload)
			if err != nil {
				panic(fmt.Errorf("tuple payload overflow: %w", err))
			}
			return in.Intern(Type{Kind: KindTuple, Payload: p})
		}
	}
	payload, err := safecast.Conv[uint32](len(in.tuples))
	if err != nil {
		panic(fmt.Errorf("tuple payload overflow: %w", err))
	}
	in.tuples = append(in.tuples, TupleInfo{Elems: append([]TypeID(nil), elems...)})
	return in.Intern(Type{Kind: KindTuple, Payload: payload})
}

// TupleInfo returns the element list for a tuple TypeID.
func (in *Interner) TupleInfo(id TypeID) (*TupleInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTuple {
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.tuples) {
		return nil, false
	}
	return &in.tuples[tt.Payload], true
}

func sameTypeList(a, b []TypeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
