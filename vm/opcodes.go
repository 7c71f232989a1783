package vm

type Opcode uint32

const (
	NOP Opcode = iota
	// PRE-STACK ... TOS+1 TOS | OP |  POST-STACK |
	POP  // A | | NIL
	DUP  // A | | A A
	SWAP // A B | | B A
	PUSH // NIL | Arg: constant index | C

	ADD          // A B | C = A + B | C
	SUBTRACT     // A B | C = A - B | C
	MULTIPLY     // A B | C = A * B | C
	DIVIDE       // A B | C = A / B | C
	MODULO       // A B | C = A % B | C
	FLOOR_DIVIDE // A B | C = A // B | C
	POWER        // A B | C = A ** B | C
	NEGATE       // A | B = -A | B

	EQ  // A B | C = A == B | C
	NEQ // A B | C = A != B | C
	LT  // A B | C = A < B | C
	LTE // A B | C = A <= B | C
	GT  // A B | C = A > B | C
	GTE // A B | C = A >= B | C
	NOT // A | B = not A | B

	JMP    // | Jumps unconditionally to Arg |
	JFALSE // A | Jumps to Arg if A is false |

	LOOP     // | Runs Body until it breaks; Post runs after every iteration |
	BREAK    // | Leaves the innermost loop |
	CONTINUE // | Ends the current iteration of the innermost loop |
	RETURN   // A | Returns A up a stack frame |
	RAISE    // A | Raises a runtime error with message A |

	MAKE_FN     // | Arg: function index | Fn (closure over the current scope)
	CALL        // A B Fn | Arg: 2, calls Fn with the top two args | R
	CALL_NATIVE // A B | Arg: name constant, Push: keep result | R?

	LOAD_GLOBAL  // | Arg: name constant | V
	STORE_GLOBAL // V | Arg: name constant |
	LOAD_LOCAL   // | Arg: name constant, resolved through the scope chain | V
	STORE_LOCAL  // V | Arg: name constant, nearest binding or current scope |
	DEFINE       // V | Arg: name constant, always the current scope |
	NEW_SCOPE    // | Pushes a child scope |
	POP_SCOPE    // | Restores the parent scope |

	LABEL // compile time only
	OpcodeMax
)

var opcodeNames = [...]string{
	NOP:          "NOP",
	POP:          "POP",
	DUP:          "DUP",
	SWAP:         "SWAP",
	PUSH:         "PUSH",
	ADD:          "ADD",
	SUBTRACT:     "SUBTRACT",
	MULTIPLY:     "MULTIPLY",
	DIVIDE:       "DIVIDE",
	MODULO:       "MODULO",
	FLOOR_DIVIDE: "FLOOR_DIVIDE",
	POWER:        "POWER",
	NEGATE:       "NEGATE",
	EQ:           "EQ",
	NEQ:          "NEQ",
	LT:           "LT",
	LTE:          "LTE",
	GT:           "GT",
	GTE:          "GTE",
	NOT:          "NOT",
	JMP:          "JMP",
	JFALSE:       "JFALSE",
	LOOP:         "LOOP",
	BREAK:        "BREAK",
	CONTINUE:     "CONTINUE",
	RETURN:       "RETURN",
	RAISE:        "RAISE",
	MAKE_FN:      "MAKE_FN",
	CALL:         "CALL",
	CALL_NATIVE:  "CALL_NATIVE",
	LOAD_GLOBAL:  "LOAD_GLOBAL",
	STORE_GLOBAL: "STORE_GLOBAL",
	LOAD_LOCAL:   "LOAD_LOCAL",
	STORE_LOCAL:  "STORE_LOCAL",
	DEFINE:       "DEFINE",
	NEW_SCOPE:    "NEW_SCOPE",
	POP_SCOPE:    "POP_SCOPE",
	LABEL:        "LABEL",
}

func (o Opcode) String() string {
	if o < OpcodeMax {
		return opcodeNames[o]
	}
	panic("Unnamed opcode")
}

// HasConstantArg reports whether Arg indexes the chunk's constant pool.
func (o Opcode) HasConstantArg() bool {
	switch o {
	case PUSH, CALL_NATIVE, LOAD_GLOBAL, STORE_GLOBAL, LOAD_LOCAL, STORE_LOCAL, DEFINE:
		return true
	}
	return false
}
