// Package archive holds the canonical archive tree produced by conversion.
//
// The tree is owned: an Archive owns its runs and workflows, and a Run owns
// its systems, calculations and extension attributes. Children are created
// through builder methods on their parent and are never shared.
package archive

// Archive is the root of one converted document.
type Archive struct {
	Run      []*Run      `json:"run"`
	Workflow []*Workflow `json:"workflow,omitempty"`
}

// New returns an empty archive.
func New() *Archive {
	return &Archive{Run: []*Run{}}
}

// AddRun attaches r as the next run.
func (a *Archive) AddRun(r *Run) {
	a.Run = append(a.Run, r)
}

// AddWorkflow attaches w as the next workflow.
func (a *Archive) AddWorkflow(w *Workflow) {
	a.Workflow = append(a.Workflow, w)
}

// Run is the converted output of one record.
type Run struct {
	Program     Program        `json:"program"`
	System      []*System      `json:"system,omitempty"`
	Calculation []*Calculation `json:"calculation,omitempty"`

	// Extensions are flattened into the run object when serialized.
	Extensions map[string]any `json:"-"`
}

// Program identifies the code that produced a run.
type Program struct {
	Name                string   `json:"name"`
	Version             string   `json:"version,omitempty"`
	CompilationDatetime *float64 `json:"compilation_datetime,omitempty"`
}

// NewRun returns a run for the named program.
func NewRun(program string) *Run {
	return &Run{Program: Program{Name: program}}
}

// AddSystem appends a system built from atoms.
func (r *Run) AddSystem(atoms Atoms) *System {
	s := &System{Atoms: atoms}
	r.System = append(r.System, s)
	return s
}

// AddCalculation appends an empty calculation.
func (r *Run) AddCalculation() *Calculation {
	c := &Calculation{}
	r.Calculation = append(r.Calculation, c)
	return c
}

// CalculationAt returns the calculation at index n, appending empty
// calculations until it exists.
func (r *Run) CalculationAt(n int) *Calculation {
	for len(r.Calculation) <= n {
		r.AddCalculation()
	}
	return r.Calculation[n]
}

// LastCalculation returns the last calculation, creating one if the run has none.
func (r *Run) LastCalculation() *Calculation {
	if len(r.Calculation) == 0 {
		return r.AddCalculation()
	}
	return r.Calculation[len(r.Calculation)-1]
}

// LastSystem returns the last system, or nil.
func (r *Run) LastSystem() *System {
	if len(r.System) == 0 {
		return nil
	}
	return r.System[len(r.System)-1]
}

// System is one atomic configuration.
type System struct {
	Atoms Atoms `json:"atoms"`
}

// Atoms holds labels, Cartesian positions and lattice vectors (rows).
type Atoms struct {
	Labels         []string    `json:"labels"`
	Positions      [][]float64 `json:"positions"`
	LatticeVectors [][]float64 `json:"lattice_vectors"`
	Periodic       []bool      `json:"periodic"`
	LengthUnit     string      `json:"length_unit,omitempty"`
}

// Calculation carries the quantities of one configuration.
type Calculation struct {
	Energy              *Energy         `json:"energy,omitempty"`
	Thermodynamics      *Thermodynamics `json:"thermodynamics,omitempty"`
	Stress              *Stress         `json:"stress,omitempty"`
	BandStructurePhonon *BandStructure  `json:"band_structure_phonon,omitempty"`
}

// Energy holds the total energy in joules.
type Energy struct {
	Total float64 `json:"total"`
}

// Thermodynamics holds the temperature in kelvin.
type Thermodynamics struct {
	Temperature float64 `json:"temperature"`
}

// Stress holds the symmetric 3×3 total stress tensor in pascals.
type Stress struct {
	Total [][]float64 `json:"total"`
}

// BandStructure is a list of band segments.
type BandStructure struct {
	Segment []BandSegment `json:"segment"`
}

// BandSegment holds energies indexed [spin][kpoint][band] and optional k-points.
type BandSegment struct {
	Energies [][][]float64 `json:"energies"`
	KPoints  [][]float64   `json:"kpoints,omitempty"`
}

// Workflow types.
const (
	WorkflowElastic   = "elastic"
	WorkflowInterface = "interface"
	WorkflowPhonon    = "phonon"
)

// Workflow is a derived workflow result attached to the archive root.
type Workflow struct {
	Type      string     `json:"type"`
	Elastic   *Elastic   `json:"elastic,omitempty"`
	Interface *Interface `json:"interface,omitempty"`
	Phonon    *Phonon    `json:"phonon,omitempty"`
}

// Elastic holds elastic constants in Voigt notation.
type Elastic struct {
	ElasticConstantsMatrixSecondOrder [][]float64 `json:"elastic_constants_matrix_second_order"`
	ElasticConstantsGradientMatrix    [][]float64 `json:"elastic_constants_gradient_matrix,omitempty"`
	Excess                            *float64    `json:"excess,omitempty"`
}

// Interface holds generalized stacking-fault data.
type Interface struct {
	DimensionalityFaultPlane     int         `json:"dimensionality_fault_plane,omitempty"`
	ShiftDirection               []string    `json:"shift_direction,omitempty"`
	DisplacementFraction         [][]float64 `json:"displacement_fraction,omitempty"`
	EnergyFaultPlane             any         `json:"energy_fault_plane,omitempty"`
	EnergyExtrinsicStackingFault *float64    `json:"energy_extrinsic_stacking_fault,omitempty"`
	EnergyIntrinsicStackingFault *float64    `json:"energy_intrinsic_stacking_fault,omitempty"`
	EnergyUnstableStackingFault  *float64    `json:"energy_unstable_stacking_fault,omitempty"`
	EnergyUnstableTwinningFault  *float64    `json:"energy_unstable_twinning_fault,omitempty"`
	SlipFraction                 *float64    `json:"slip_fraction,omitempty"`
}

// Phonon holds phonon workflow results not attached to a calculation.
type Phonon struct {
	WaveNumbers []float64 `json:"wave_numbers,omitempty"`
}

// Counts summarizes an archive.
type Counts struct {
	Runs         int
	Systems      int
	Calculations int
	Workflows    int
	Extensions   int
}

// Count tallies the archive contents.
func (a *Archive) Count() Counts {
	c := Counts{Runs: len(a.Run), Workflows: len(a.Workflow)}
	for _, r := range a.Run {
		c.Systems += len(r.System)
		c.Calculations += len(r.Calculation)
		c.Extensions += len(r.Extensions)
	}
	return c
}
