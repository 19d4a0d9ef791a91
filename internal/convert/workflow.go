package convert

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/kimconv/internal/archive"
	"github.com/roach88/kimconv/internal/record"
	"github.com/roach88/kimconv/internal/units"
)

// classifier pairs a property-id predicate with a workflow builder.
//
// Classifiers are evaluated independently in order; every matching
// classifier contributes its workflow, so categories can co-fire. build
// reports field-level problems through the run result and returns nil when
// no workflow should be attached.
type classifier struct {
	name  string
	match func(propertyID string) bool
	build func(res *runResult, v *record.View, propertyID string) *archive.Workflow
}

// defaultClassifiers returns the elastic, interface and phonon classifiers
// in evaluation order.
func defaultClassifiers() []classifier {
	return []classifier{
		{name: archive.WorkflowElastic, match: containsAny("elastic-constants"), build: buildElastic},
		{name: archive.WorkflowInterface, match: containsAny("gamma-surface", "stacking-fault", "twinning-fault"), build: buildInterface},
		{name: archive.WorkflowPhonon, match: containsAny("phonon-dispersion"), build: buildPhonon},
	}
}

func containsAny(substrs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range substrs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

// classify runs every matching classifier against the record's property id.
// The property id itself is left for passthrough.
func (c *Converter) classify(res *runResult, v *record.View) {
	id, _ := v.Peek(record.KeyPropertyID).(string)
	for _, cl := range c.classifiers {
		if !cl.match(id) {
			continue
		}
		if wf := cl.build(res, v, id); wf != nil {
			res.workflows = append(res.workflows, wf)
		}
	}
}

// Workflow record keys.
const (
	keyExcess             = "excess.si-value"
	keyGammaSurface       = "gamma-surface.si-value"
	keyFaultPlaneEnergy   = "fault-plane-energy.si-value"
	keyFaultPlaneShift    = "fault-plane-shift-fraction.source-value"
	keySlipFraction       = "unstable-slip-fraction.source-value"
	keyResponseFrequency  = "response-frequency.si-value"
	keyWaveVector         = "wave-vector-direction.si-value"
	keyWaveNumber         = "wave-number.si-value"
	elasticOrder          = 6
	elasticGradientOrder  = 18
	strainGradientFeature = "strain-gradient"
)

var shiftFractionKey = regexp.MustCompile(`^fault-plane-shift-fraction-(\d+)\.source-value$`)

// readMatrix fills an n×n matrix from keys produced by format(i, j) with
// 1-based indices. Missing entries are zero.
func readMatrix(res *runResult, v *record.View, n int, format func(i, j int) string) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			key := format(i+1, j+1)
			if !v.Has(key) {
				continue
			}
			f, err := v.Float(key)
			if err != nil {
				res.fail(KindWorkflow, key, -1, err)
				continue
			}
			m[i][j] = f
		}
	}
	return m
}

// readScalar reads an optional number, reporting mistyped values.
func readScalar(res *runResult, v *record.View, key string) *float64 {
	if !v.Has(key) {
		return nil
	}
	f, err := v.Float(key)
	if err != nil {
		res.fail(KindWorkflow, key, -1, err)
		return nil
	}
	return &f
}

func buildElastic(res *runResult, v *record.View, propertyID string) *archive.Workflow {
	el := &archive.Elastic{
		ElasticConstantsMatrixSecondOrder: Symmetrize(readMatrix(res, v, elasticOrder, func(i, j int) string {
			return fmt.Sprintf("c%d%d.si-value", i, j)
		})),
	}
	if strings.Contains(propertyID, strainGradientFeature) {
		el.ElasticConstantsGradientMatrix = Symmetrize(readMatrix(res, v, elasticGradientOrder, func(i, j int) string {
			return fmt.Sprintf("d-%d-%d.si-value", i, j)
		}))
	}
	el.Excess = readScalar(res, v, keyExcess)
	return &archive.Workflow{Type: archive.WorkflowElastic, Elastic: el}
}

// interfaceEnergyKeys maps the named fault energies onto their fields.
var interfaceEnergyKeys = []struct {
	key string
	set func(*archive.Interface, *float64)
}{
	{"extrinsic-stacking-fault-energy.si-value", func(i *archive.Interface, f *float64) { i.EnergyExtrinsicStackingFault = f }},
	{"intrinsic-stacking-fault-energy.si-value", func(i *archive.Interface, f *float64) { i.EnergyIntrinsicStackingFault = f }},
	{"unstable-stacking-energy.si-value", func(i *archive.Interface, f *float64) { i.EnergyUnstableStackingFault = f }},
	{"unstable-twinning-energy.si-value", func(i *archive.Interface, f *float64) { i.EnergyUnstableTwinningFault = f }},
}

type shiftKey struct {
	key       string
	direction string
	order     int
}

func buildInterface(res *runResult, v *record.View, _ string) *archive.Workflow {
	iface := &archive.Interface{}

	var shifts []shiftKey
	for _, key := range v.Record().Keys() {
		m := shiftFractionKey.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		order, _ := strconv.Atoi(m[1])
		shifts = append(shifts, shiftKey{key: key, direction: m[1], order: order})
	}
	sort.SliceStable(shifts, func(i, j int) bool { return shifts[i].order < shifts[j].order })

	switch {
	case len(shifts) > 0:
		distinct := make(map[string]bool)
		for _, s := range shifts {
			fractions, err := v.Floats(s.key)
			if err != nil {
				res.fail(KindWorkflow, s.key, -1, err)
				continue
			}
			iface.ShiftDirection = append(iface.ShiftDirection, s.direction)
			iface.DisplacementFraction = append(iface.DisplacementFraction, fractions)
			distinct[s.direction] = true
		}
		iface.DimensionalityFaultPlane = len(distinct)
		iface.EnergyFaultPlane = readNative(res, v, keyGammaSurface)

	case v.Has(keyFaultPlaneEnergy):
		iface.DimensionalityFaultPlane = 1
		iface.EnergyFaultPlane = readNative(res, v, keyFaultPlaneEnergy)
		if v.Has(keyFaultPlaneShift) {
			fractions, err := v.Floats(keyFaultPlaneShift)
			if err != nil {
				res.fail(KindWorkflow, keyFaultPlaneShift, -1, err)
			} else {
				iface.DisplacementFraction = [][]float64{fractions}
			}
		}
	}

	for _, e := range interfaceEnergyKeys {
		e.set(iface, readScalar(res, v, e.key))
	}
	iface.SlipFraction = readScalar(res, v, keySlipFraction)

	return &archive.Workflow{Type: archive.WorkflowInterface, Interface: iface}
}

// readNative reads an arbitrary JSON value in its decoded form, or nil.
func readNative(res *runResult, v *record.View, key string) any {
	if !v.Has(key) {
		return nil
	}
	native, err := archive.Native(v.Peek(key))
	if err != nil {
		res.fail(KindWorkflow, key, -1, err)
		return nil
	}
	v.Consume(key)
	return native
}

var errNoSystem = errors.New("run has no system to project k-points onto")

func buildPhonon(res *runResult, v *record.View, _ string) *archive.Workflow {
	ph := &archive.Phonon{}

	if v.Has(keyResponseFrequency) {
		energies, err := phononEnergies(v.Peek(keyResponseFrequency))
		if err != nil {
			res.fail(KindWorkflow, keyResponseFrequency, -1, err)
		} else {
			v.Consume(keyResponseFrequency)
			segment := archive.BandSegment{Energies: [][][]float64{energies}}
			if v.Has(keyWaveVector) {
				kpoints, err := projectKPoints(res.run, v.Peek(keyWaveVector))
				switch {
				case errors.Is(err, errNoSystem):
					// k-points are omitted; the directions stay for passthrough.
				case err != nil:
					res.fail(KindWorkflow, keyWaveVector, -1, err)
				default:
					v.Consume(keyWaveVector)
					segment.KPoints = kpoints
				}
			}
			res.run.LastCalculation().BandStructurePhonon = &archive.BandStructure{
				Segment: []archive.BandSegment{segment},
			}
		}
	}

	if v.Has(keyWaveNumber) {
		waveNumbers, err := v.Floats(keyWaveNumber)
		if err != nil {
			res.fail(KindWorkflow, keyWaveNumber, -1, err)
		} else {
			ph.WaveNumbers = waveNumbers
		}
	}

	return &archive.Workflow{Type: archive.WorkflowPhonon, Phonon: ph}
}

// phononEnergies converts response frequencies (Hz) into band energies (J)
// indexed [kpoint][band]. A flat series is one band per k-point; deeper
// nesting keeps only the first band segment.
func phononEnergies(raw any) ([][]float64, error) {
	for record.Rank(raw) > 2 {
		raw = raw.([]any)[0]
	}

	rows := [][]float64{}
	switch record.Rank(raw) {
	case 0:
		return nil, fmt.Errorf("want a list of frequencies, got %T", raw)
	case 1:
		flat, err := numbers(raw.([]any))
		if err != nil {
			return nil, err
		}
		for _, f := range flat {
			rows = append(rows, []float64{f})
		}
	default:
		for i, row := range raw.([]any) {
			list, ok := row.([]any)
			if !ok {
				return nil, fmt.Errorf("row %d: want a list, got %T", i, row)
			}
			r, err := numbers(list)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			rows = append(rows, r)
		}
	}

	for _, row := range rows {
		for j, f := range row {
			row[j] = units.FrequencyToEnergy(f)
		}
	}
	return rows, nil
}

// projectKPoints maps fractional wave-vector directions onto the lattice
// vectors of the run's last system. A single flat direction is one k-point.
func projectKPoints(run *archive.Run, raw any) ([][]float64, error) {
	sys := run.LastSystem()
	if sys == nil {
		return nil, errNoSystem
	}
	cell := sys.Atoms.LatticeVectors
	if len(cell) != 3 {
		return nil, fmt.Errorf("lattice has %d vectors", len(cell))
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("want a list of wave vectors, got %T", raw)
	}
	if record.Rank(raw) == 1 && len(list) == 3 {
		list = []any{list}
	}

	out := make([][]float64, len(list))
	for i, elem := range list {
		row, ok := elem.([]any)
		if !ok {
			return nil, fmt.Errorf("wave vector %d: want a list, got %T", i, elem)
		}
		vec, err := numbers(row)
		if err != nil {
			return nil, fmt.Errorf("wave vector %d: %w", i, err)
		}
		if len(vec) != 3 {
			return nil, fmt.Errorf("wave vector %d: want 3 components, got %d", i, len(vec))
		}
		k := make([]float64, 3)
		for j := 0; j < 3; j++ {
			for d := 0; d < 3; d++ {
				k[j] += vec[d] * cell[d][j]
			}
		}
		out[i] = k
	}
	return out, nil
}

func numbers(list []any) ([]float64, error) {
	out := make([]float64, len(list))
	for i, elem := range list {
		f, ok := elem.(float64)
		if !ok {
			return nil, fmt.Errorf("element %d: want a number, got %T", i, elem)
		}
		out[i] = f
	}
	return out, nil
}
