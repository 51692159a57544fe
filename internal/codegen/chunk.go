package codegen

import "github.com/jactl-lang/jactl/internal/values"

// Instr is one instruction: an opcode plus up to two integer operands
// (jump targets, slot indices, table sizes) and an optional constant
// value. Grounded on the teacher's Chunk.Code []byte + Constants pool
// shape (chunk.go), collapsed into one struct per instruction instead of
// a separate constant-pool index (SPEC_FULL §3.6 notes the deliberate
// simplification).
type Instr struct {
	Op   Opcode
	A, B int
	Val  values.Value
	Str  string // opcode-specific string operand (global name, map key, regex source, function name)
	Line int
}

// Chunk is one function body's compiled instruction stream.
type Chunk struct {
	Code []Instr
	File string
}

func (c *Chunk) emit(i Instr) int {
	c.Code = append(c.Code, i)
	return len(c.Code) - 1
}

// patchJumpHere rewrites a previously emitted jump's A operand (target
// offset) to the current end of the chunk — the "failJump"-threading
// convention from the teacher's compiler_patterns.go, generalised across
// every jump-emitting call site in this package.
func (c *Chunk) patchJumpHere(at int) {
	c.Code[at].A = len(c.Code)
}

// Function is one compiled Jactl function/method/closure body, carrying
// the continuation-transform bookkeeping spec §4.4 requires: the dense
// 0..K-1 suspension-point location space (I4/I5) and the snapshot slot
// counts needed to size localPrimitives/localObjects on suspend.
type Function struct {
	Name       string
	Params     []string
	NumSlots   int // total local slots assigned (params + locals), snapshot array size
	IsAsync    bool
	Chunk      *Chunk

	// ResumeOffsets[i] is the Code index the resume dispatch jumps to
	// for suspension point i (spec §4.4 "methodLocation is a dense
	// integer over 0..K-1... in source order"). A fresh call (cont == nil)
	// starts at Code index 0 and does not consult this table.
	ResumeOffsets []int

	// PrimitiveSlots records, per local slot, whether it holds a
	// primitive (int/long/double/bool) or an object reference — the split
	// spec §3's Continuation record keeps between localPrimitives []int64
	// and localObjects []interface{}. This backend never populates it:
	// every local is snapshotted into LocalObjects.
	PrimitiveSlots []bool
}

func NewFunction(name string) *Function {
	return &Function{Name: name, Chunk: &Chunk{}}
}

// suspensionCount is the dense location-space size K (spec §4.4).
func (f *Function) suspensionCount() int { return len(f.ResumeOffsets) }
