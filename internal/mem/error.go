package mem

import "fmt"

// AccessCode identifies the kind of a memory access fault.
type AccessCode int

// Stable access fault codes - do not change values.
const (
	AccessDangling       AccessCode = 2001 // MEM2001: unknown or freed allocation
	AccessOutOfBounds    AccessCode = 2002 // MEM2002: access past allocation end
	AccessMisaligned     AccessCode = 2003 // MEM2003: offset violates required alignment
	AccessUninit         AccessCode = 2004 // MEM2004: read through uninitialized bytes
	AccessPointerAsBytes AccessCode = 2005 // MEM2005: raw read overlapping a relocation
	AccessImmutable      AccessCode = 2006 // MEM2006: write to an interned allocation
	AccessOutOfMemory    AccessCode = 2007 // MEM2007: size computation overflow
	AccessDoubleFree     AccessCode = 2008 // MEM2008: deallocating twice
	AccessSizeMismatch   AccessCode = 2009 // MEM2009: scalar width does not match access size
)

// String returns the code as "MEM2001" format.
func (c AccessCode) String() string {
	return fmt.Sprintf("MEM%d", c)
}

// AccessError is a typed memory fault. It is recoverable at the
// evaluation level: the interpreter wraps it with a backtrace and the
// evaluation in progress fails, nothing else.
type AccessError struct {
	Code    AccessCode
	Message string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func accessErr(code AccessCode, format string, args ...any) *AccessError {
	return &AccessError{Code: code, Message: fmt.Sprintf(format, args...)}
}
