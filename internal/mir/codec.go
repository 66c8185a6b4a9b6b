package mir

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"constvm/internal/types"
)

// Current schema version - increment when the module format changes.
const moduleSchemaVersion uint16 = 1

// ModuleFile is the on-disk image of a module: the type environment
// travels with the IR so TypeIDs stay meaningful.
type ModuleFile struct {
	Schema uint16
	Types  types.Snapshot
	Module *Module
}

// EncodeModule serializes a module and its type environment.
func EncodeModule(w io.Writer, m *Module, typesIn *types.Interner) error {
	file := ModuleFile{
		Schema: moduleSchemaVersion,
		Types:  typesIn.Snapshot(),
		Module: m,
	}
	enc := msgpack.NewEncoder(w)
	return enc.Encode(&file)
}

// DecodeModule deserializes a module, rebuilding its type interner.
func DecodeModule(r io.Reader) (*Module, *types.Interner, error) {
	var file ModuleFile
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return nil, nil, fmt.Errorf("decode module: %w", err)
	}
	if file.Schema != moduleSchemaVersion {
		return nil, nil, fmt.Errorf("unsupported module schema %d (want %d)", file.Schema, moduleSchemaVersion)
	}
	if file.Module == nil {
		return nil, nil, fmt.Errorf("module file has no module")
	}
	if file.Module.Funcs == nil {
		file.Module.Funcs = make(map[FuncID]*Body)
	}
	return file.Module, types.FromSnapshot(file.Types), nil
}
