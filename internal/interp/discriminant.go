package interp

import (
	"constvm/internal/mem"
	"constvm/internal/types"
)

// ReadDiscriminant returns the active variant index of an enum place.
// Structs and unions report variant 0; other types are a mismatch.
func (ev *Eval) ReadDiscriminant(pl PlaceTy) (int, *EvalError) {
	tt := ev.Types.MustLookup(pl.Type)
	switch tt.Kind {
	case types.KindStruct, types.KindUnion:
		return 0, nil
	case types.KindEnum:
	default:
		return 0, ev.eb.typeMismatch("enum place", tt.Kind.String())
	}

	info, ok := ev.Types.AdtInfo(pl.Type)
	if !ok {
		return 0, ev.eb.typeMismatch("declared enum", "undeclared type")
	}
	if len(info.Variants) == 0 {
		// A value of an uninhabited enum cannot exist; reaching here
		// means the interpreter manufactured one.
		panic("interp: discriminant read on zero-variant enum")
	}

	if err := ev.ForceAllocation(&pl); err != nil {
		return 0, err
	}
	tag, aerr := ev.Mem.ReadScalarInit(pl.Mem.Ptr, pl.Layout.TagSize, pl.Layout.TagSize)
	if aerr != nil {
		return 0, ev.eb.memFault(aerr)
	}
	raw, aerr := tag.ToBits()
	if aerr != nil {
		return 0, ev.eb.memFault(aerr)
	}
	if raw >= uint64(len(info.Variants)) {
		return 0, ev.eb.badVariant(raw, len(info.Variants))
	}
	return int(raw), nil
}

// WriteDiscriminant selects the active variant of an enum place.
func (ev *Eval) WriteDiscriminant(pl PlaceTy, variant int) *EvalError {
	tt := ev.Types.MustLookup(pl.Type)
	if tt.Kind != types.KindEnum {
		return ev.eb.typeMismatch("enum place", tt.Kind.String())
	}
	info, ok := ev.Types.AdtInfo(pl.Type)
	if !ok {
		return ev.eb.typeMismatch("declared enum", "undeclared type")
	}
	if variant < 0 || variant >= len(info.Variants) {
		return ev.eb.badVariant(uint64(variant), len(info.Variants))
	}
	if err := ev.ForceAllocation(&pl); err != nil {
		return err
	}
	tag := mem.BitsFrom(uint64(variant), pl.Layout.TagSize)
	if aerr := ev.Mem.WriteScalar(pl.Mem.Ptr, tag, pl.Layout.TagSize, pl.Layout.TagSize); aerr != nil {
		return ev.eb.memFault(aerr)
	}
	return nil
}
