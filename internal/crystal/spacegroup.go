package crystal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// Operation is one space-group symmetry operation in fractional coordinates:
// x' = Rot·x + Trans (mod 1).
type Operation struct {
	Rot   [3][3]int
	Trans [3]float64
}

// Apply maps a fractional position through the operation and wraps it into [0, 1).
func (op Operation) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		v := op.Trans[i]
		for k := 0; k < 3; k++ {
			v += float64(op.Rot[i][k]) * p[k]
		}
		out[i] = wrap(v)
	}
	return out
}

// compose returns a∘b (b applied first).
func compose(a, b Operation) Operation {
	var out Operation
	for i := 0; i < 3; i++ {
		t := a.Trans[i]
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out.Rot[i][j] += a.Rot[i][k] * b.Rot[k][j]
			}
			t += float64(a.Rot[i][j]) * b.Trans[j]
		}
		out.Trans[i] = wrap(t)
	}
	return out
}

type opKey struct {
	rot   [3][3]int
	trans [3]int64
}

func (op Operation) key() opKey {
	k := opKey{rot: op.Rot}
	for i, t := range op.Trans {
		k.trans[i] = int64(math.Round(t*1e6)) % 1000000
	}
	return k
}

// wrap folds v into [0, 1), snapping values within 1e-9 of 1 to 0.
func wrap(v float64) float64 {
	v -= math.Floor(v)
	if v > 1-1e-9 {
		v = 0
	}
	return v
}

// SpaceGroup is a crystallographic space group in its ITA standard setting.
type SpaceGroup struct {
	Number int
	Symbol string

	generators []string
	centring   []string

	once sync.Once
	ops  []Operation
	err  error
}

var (
	cubicGenerators = []string{"-x,-y,z", "-x,y,-z", "z,x,y", "y,x,-z", "-x,-y,-z"}
	faceCentring    = []string{"x,y+1/2,z+1/2", "x+1/2,y,z+1/2", "x+1/2,y+1/2,z"}
	bodyCentring    = []string{"x+1/2,y+1/2,z+1/2"}
	rhombCentring   = []string{"x+2/3,y+1/3,z+1/3", "x+1/3,y+2/3,z+2/3"}
	tetragonal      = []string{"-y,x,z", "x,-y,-z", "-x,-y,-z"}
)

// Supported groups are those of the common OpenKIM crystal prototypes.
// I4_1/amd and Fd-3m use origin choice 1; R-3m uses hexagonal axes.
var spaceGroups = []*SpaceGroup{
	{Number: 1, Symbol: "P1"},
	{Number: 2, Symbol: "P-1", generators: []string{"-x,-y,-z"}},
	{Number: 123, Symbol: "P4/mmm", generators: tetragonal},
	{Number: 139, Symbol: "I4/mmm", generators: tetragonal, centring: bodyCentring},
	{Number: 141, Symbol: "I4_1/amd", generators: []string{
		"-y,x+1/2,z+1/4", "-x+1/2,y,-z+3/4", "-x,-y+1/2,-z+1/4",
	}, centring: bodyCentring},
	{Number: 164, Symbol: "P-3m1", generators: []string{"-y,x-y,z", "y,x,-z", "-x,-y,-z"}},
	{Number: 166, Symbol: "R-3m", generators: []string{"-y,x-y,z", "y,x,-z", "-x,-y,-z"}, centring: rhombCentring},
	{Number: 186, Symbol: "P6_3mc", generators: []string{"-y,x-y,z", "-x,-y,z+1/2", "-y,-x,z"}},
	{Number: 191, Symbol: "P6/mmm", generators: []string{"-y,x-y,z", "-x,-y,z", "y,x,-z", "-x,-y,-z"}},
	{Number: 194, Symbol: "P6_3/mmc", generators: []string{"-y,x-y,z", "-x,-y,z+1/2", "y,x,-z", "-x,-y,-z"}},
	{Number: 216, Symbol: "F-43m", generators: []string{"-x,-y,z", "-x,y,-z", "z,x,y", "y,x,z"}, centring: faceCentring},
	{Number: 221, Symbol: "Pm-3m", generators: cubicGenerators},
	{Number: 223, Symbol: "Pm-3n", generators: []string{"-x,-y,z", "-x,y,-z", "z,x,y", "y+1/2,x+1/2,-z+1/2", "-x,-y,-z"}},
	{Number: 225, Symbol: "Fm-3m", generators: cubicGenerators, centring: faceCentring},
	{Number: 227, Symbol: "Fd-3m", generators: []string{
		"-x,-y+1/2,z+1/2", "-x+1/2,y+1/2,-z", "z,x,y", "y+3/4,x+1/4,-z+3/4", "-x+1/4,-y+1/4,-z+1/4",
	}, centring: faceCentring},
	{Number: 229, Symbol: "Im-3m", generators: cubicGenerators, centring: bodyCentring},
}

// UnsupportedSpaceGroupError reports a space group outside the built-in table.
type UnsupportedSpaceGroupError struct {
	Value any
}

func (e *UnsupportedSpaceGroupError) Error() string {
	return fmt.Sprintf("unsupported space group %v", e.Value)
}

// LookupSpaceGroup resolves a space group from its number (int, float64 or
// numeric string) or its Hermann-Mauguin symbol ("Fm-3m", "P63/mmc").
func LookupSpaceGroup(v any) (*SpaceGroup, error) {
	switch t := v.(type) {
	case int:
		return byNumber(t, v)
	case int64:
		return byNumber(int(t), v)
	case float64:
		if t != math.Trunc(t) {
			return nil, &UnsupportedSpaceGroupError{Value: v}
		}
		return byNumber(int(t), v)
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return byNumber(n, v)
		}
		norm := normalizeSymbol(s)
		for _, sg := range spaceGroups {
			if normalizeSymbol(sg.Symbol) == norm {
				return sg, nil
			}
		}
	}
	return nil, &UnsupportedSpaceGroupError{Value: v}
}

func byNumber(n int, orig any) (*SpaceGroup, error) {
	for _, sg := range spaceGroups {
		if sg.Number == n {
			return sg, nil
		}
	}
	return nil, &UnsupportedSpaceGroupError{Value: orig}
}

// normalizeSymbol drops spaces and screw-axis underscores so "P 63/m m c",
// "P63/mmc" and "P6_3/mmc" compare equal.
func normalizeSymbol(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	return strings.ToLower(s)
}

// Operations returns the full operation set (including centring), generated
// once by closure over the generators.
func (sg *SpaceGroup) Operations() ([]Operation, error) {
	sg.once.Do(func() {
		sg.ops, sg.err = closeGroup(append(append([]string{}, sg.generators...), sg.centring...))
	})
	return sg.ops, sg.err
}

func closeGroup(generators []string) ([]Operation, error) {
	identity := Operation{Rot: [3][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
	ops := []Operation{identity}
	seen := map[opKey]bool{identity.key(): true}

	for _, g := range generators {
		op, err := ParseOperation(g)
		if err != nil {
			return nil, err
		}
		if !seen[op.key()] {
			seen[op.key()] = true
			ops = append(ops, op)
		}
	}

	// Space groups modulo lattice translations are finite; 192 is the
	// largest order among the supported groups.
	for grew := true; grew; {
		grew = false
		n := len(ops)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				c := compose(ops[i], ops[j])
				if k := c.key(); !seen[k] {
					seen[k] = true
					ops = append(ops, c)
					grew = true
				}
			}
		}
		if len(ops) > 192 {
			return nil, fmt.Errorf("space group closure did not terminate (%d operations)", len(ops))
		}
	}
	return ops, nil
}

// ParseOperation parses a Jones-faithful triplet such as "-x+1/4,y+1/2,-z".
func ParseOperation(s string) (Operation, error) {
	var op Operation
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return op, fmt.Errorf("operation %q: want 3 components", s)
	}
	for i, part := range parts {
		expr := strings.ReplaceAll(strings.TrimSpace(part), "-", "+-")
		for _, term := range strings.Split(expr, "+") {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			sign := 1
			if strings.HasPrefix(term, "-") {
				sign = -1
				term = term[1:]
			}
			switch term {
			case "x":
				op.Rot[i][0] += sign
			case "y":
				op.Rot[i][1] += sign
			case "z":
				op.Rot[i][2] += sign
			default:
				f, err := parseFraction(term)
				if err != nil {
					return op, fmt.Errorf("operation %q: %w", s, err)
				}
				op.Trans[i] += float64(sign) * f
			}
		}
		op.Trans[i] = wrap(op.Trans[i])
	}
	return op, nil
}

func parseFraction(s string) (float64, error) {
	num, den, isFrac := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	if !isFrac {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("zero denominator in %q", s)
	}
	return n / d, nil
}
