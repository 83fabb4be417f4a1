package native

// FormatTag names a physical layout. Tags spell the outer-to-inner order of
// logical dimensions a, b, c, ...; an uppercase letter marks a blocked
// dimension whose block size follows as a "<size><letter>" suffix.
type FormatTag int32

const (
	FormatUndef FormatTag = iota
	FormatAny

	FormatA
	FormatAB
	FormatABC
	FormatABCD
	FormatABCDE
	FormatABCDEF
	FormatABCDEFG
	FormatABCDEFGH
	FormatABCDEFGHI
	FormatABCDEFGHIJ
	FormatABCDEFGHIJK
	FormatABCDEFGHIJKL

	FormatBA
	FormatACB
	FormatBAC
	FormatBCA
	FormatCBA
	FormatACDB
	FormatBACD
	FormatBCDA
	FormatCDBA
	FormatACDEB
	FormatABDC
	FormatABDEC

	FormatABc16b
	FormatABcd8b
	FormatABcd16b
	FormatAbcd8a
	FormatAbcd16a
	FormatABcde8b
	FormatABcde16b
	FormatABcd16a16b

	formatEnd
)

type formatInfo struct {
	name  string
	ndims int
}

var formats = map[FormatTag]formatInfo{
	FormatAny:          {"any", 0},
	FormatA:            {"a", 1},
	FormatAB:           {"ab", 2},
	FormatABC:          {"abc", 3},
	FormatABCD:         {"abcd", 4},
	FormatABCDE:        {"abcde", 5},
	FormatABCDEF:       {"abcdef", 6},
	FormatABCDEFG:      {"abcdefg", 7},
	FormatABCDEFGH:     {"abcdefgh", 8},
	FormatABCDEFGHI:    {"abcdefghi", 9},
	FormatABCDEFGHIJ:   {"abcdefghij", 10},
	FormatABCDEFGHIJK:  {"abcdefghijk", 11},
	FormatABCDEFGHIJKL: {"abcdefghijkl", 12},
	FormatBA:           {"ba", 2},
	FormatACB:          {"acb", 3},
	FormatBAC:          {"bac", 3},
	FormatBCA:          {"bca", 3},
	FormatCBA:          {"cba", 3},
	FormatACDB:         {"acdb", 4},
	FormatBACD:         {"bacd", 4},
	FormatBCDA:         {"bcda", 4},
	FormatCDBA:         {"cdba", 4},
	FormatACDEB:        {"acdeb", 5},
	FormatABDC:         {"abdc", 4},
	FormatABDEC:        {"abdec", 5},
	FormatABc16b:       {"aBc16b", 3},
	FormatABcd8b:       {"aBcd8b", 4},
	FormatABcd16b:      {"aBcd16b", 4},
	FormatAbcd8a:       {"Abcd8a", 4},
	FormatAbcd16a:      {"Abcd16a", 4},
	FormatABcde8b:      {"aBcde8b", 5},
	FormatABcde16b:     {"aBcde16b", 5},
	FormatABcd16a16b:   {"ABcd16a16b", 4},
}

func (f FormatTag) String() string {
	if info, ok := formats[f]; ok {
		return info.name
	}
	return "undef"
}

// NDims is the arity of the tag; 0 for any and unknown tags.
func (f FormatTag) NDims() int {
	return formats[f].ndims
}

// PlainFormat returns the row-major tag for ndims dimensions.
func PlainFormat(ndims int) (FormatTag, bool) {
	if ndims < 1 || ndims > MaxDims {
		return FormatUndef, false
	}
	return FormatA + FormatTag(ndims-1), true
}

// MaxDims is the largest supported tensor rank.
const MaxDims = 12
