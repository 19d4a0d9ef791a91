package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kimconv/internal/archive"
	"github.com/roach88/kimconv/internal/units"
)

func workflowTypes(a *archive.Archive) []string {
	types := make([]string, len(a.Workflow))
	for i, wf := range a.Workflow {
		types[i] = wf.Type
	}
	return types
}

func TestElasticWithStrainGradient(t *testing.T) {
	res := run(t, `[{
		"property-id": "tag:staff@noreply.openkim.org,2014-05-21:property/elastic-constants-first-strain-gradient-isothermal-cubic-crystal-npt",
		"c11.si-value": 1.0,
		"c21.si-value": 2.0,
		"c12.si-value": 99.0,
		"c66.si-value": 6.0,
		"d-1-1.si-value": 3.0,
		"d-2-1.si-value": 4.0,
		"d-1-2.si-value": 77.0,
		"d-18-17.si-value": 5.0,
		"excess.si-value": 0.5
	}]`)
	require.Empty(t, res.Issues)
	require.Equal(t, []string{archive.WorkflowElastic}, workflowTypes(res.Archive))

	el := res.Archive.Workflow[0].Elastic
	require.NotNil(t, el)

	c := el.ElasticConstantsMatrixSecondOrder
	require.Len(t, c, 6)
	for _, row := range c {
		require.Len(t, row, 6)
	}
	assert.Equal(t, 1.0, c[0][0])
	assert.Equal(t, 2.0, c[0][1], "upper entry mirrors c21")
	assert.Equal(t, 2.0, c[1][0])
	assert.Equal(t, 6.0, c[5][5])

	d := el.ElasticConstantsGradientMatrix
	require.Len(t, d, 18)
	for _, row := range d {
		require.Len(t, row, 18)
	}
	assert.Equal(t, 3.0, d[0][0])
	assert.Equal(t, 4.0, d[0][1], "upper entry mirrors d-2-1")
	assert.Equal(t, 5.0, d[16][17])
	assert.Equal(t, 5.0, d[17][16])

	require.NotNil(t, el.Excess)
	assert.Equal(t, 0.5, *el.Excess)
}

func TestElasticWithoutStrainGradient(t *testing.T) {
	res := run(t, `[{"property-id": "tag:elastic-constants-isothermal-cubic", "c11.si-value": 1.0}]`)
	require.Len(t, res.Archive.Workflow, 1)
	assert.Nil(t, res.Archive.Workflow[0].Elastic.ElasticConstantsGradientMatrix)
	assert.Nil(t, res.Archive.Workflow[0].Elastic.Excess)
}

func TestInterfaceShiftDirections(t *testing.T) {
	res := run(t, `[{
		"property-id": "tag:staff@noreply.openkim.org,2015-05-26:property/gamma-surface-relaxed-fcc-crystal-npt",
		"fault-plane-shift-fraction-110.source-value": [0, 0.5],
		"fault-plane-shift-fraction-100.source-value": [0, 0.5, 1],
		"gamma-surface.si-value": [[0, 1], [1, 0]],
		"intrinsic-stacking-fault-energy.si-value": 0.125,
		"unstable-slip-fraction.source-value": 0.4
	}]`)
	require.Empty(t, res.Issues)
	require.Equal(t, []string{archive.WorkflowInterface}, workflowTypes(res.Archive))

	iface := res.Archive.Workflow[0].Interface
	assert.Equal(t, []string{"100", "110"}, iface.ShiftDirection, "ordered by direction number")
	assert.Equal(t, [][]float64{{0, 0.5, 1}, {0, 0.5}}, iface.DisplacementFraction)
	assert.Equal(t, 2, iface.DimensionalityFaultPlane)
	assert.Equal(t, []any{[]any{0.0, 1.0}, []any{1.0, 0.0}}, iface.EnergyFaultPlane)
	require.NotNil(t, iface.EnergyIntrinsicStackingFault)
	assert.Equal(t, 0.125, *iface.EnergyIntrinsicStackingFault)
	require.NotNil(t, iface.SlipFraction)
	assert.Equal(t, 0.4, *iface.SlipFraction)
	assert.Nil(t, iface.EnergyUnstableTwinningFault)

	assert.NotContains(t, res.Archive.Run[0].Extensions, "x_openkim_gamma_surface_si_value")
}

func TestInterfaceSingleFaultPlane(t *testing.T) {
	res := run(t, `[{
		"property-id": "tag:stacking-fault-relaxed-energy-curve-fcc",
		"fault-plane-energy.si-value": [0, 0.25, 0.5],
		"fault-plane-shift-fraction.source-value": [0, 0.5, 1]
	}]`)
	require.Empty(t, res.Issues)
	require.Len(t, res.Archive.Workflow, 1)

	iface := res.Archive.Workflow[0].Interface
	assert.Equal(t, 1, iface.DimensionalityFaultPlane)
	assert.Empty(t, iface.ShiftDirection)
	assert.Equal(t, [][]float64{{0, 0.5, 1}}, iface.DisplacementFraction)
	assert.Equal(t, []any{0.0, 0.25, 0.5}, iface.EnergyFaultPlane)
}

func TestPhononBandStructureOnLastCalculation(t *testing.T) {
	res := run(t, `[{
		"property-id": "tag:staff@noreply.openkim.org,2014-05-21:property/phonon-dispersion-relation-cubic-crystal-npt",
		"a.si-value": 4e-10,
		"cohesive-potential-energy.si-value": [1.0, 2.0],
		"response-frequency.si-value": [1e12, 2e12],
		"wave-vector-direction.si-value": [[0, 0, 0], [0.5, 0, 0]],
		"wave-number.si-value": [1, 2]
	}]`)
	require.Empty(t, res.Issues)
	require.Equal(t, []string{archive.WorkflowPhonon}, workflowTypes(res.Archive))

	calcs := res.Archive.Run[0].Calculation
	require.Len(t, calcs, 2)
	assert.Nil(t, calcs[0].BandStructurePhonon)
	require.NotNil(t, calcs[1].BandStructurePhonon)

	segments := calcs[1].BandStructurePhonon.Segment
	require.Len(t, segments, 1)
	energies := segments[0].Energies
	require.Len(t, energies, 1)
	require.Len(t, energies[0], 2, "one k-point per frequency")
	assert.Equal(t, []float64{units.FrequencyToEnergy(1e12)}, energies[0][0])
	assert.Equal(t, []float64{units.FrequencyToEnergy(2e12)}, energies[0][1])

	kpoints := segments[0].KPoints
	require.Len(t, kpoints, 2)
	assert.Equal(t, []float64{0, 0, 0}, kpoints[0])
	assert.InDelta(t, 2e-10, kpoints[1][0], 1e-22)
	assert.Equal(t, 0.0, kpoints[1][1])

	assert.Equal(t, []float64{1, 2}, res.Archive.Workflow[0].Phonon.WaveNumbers)
}

func TestPhononNestedFrequenciesKeepFirstSegment(t *testing.T) {
	res := run(t, `[{
		"property-id": "tag:phonon-dispersion-relation",
		"response-frequency.si-value": [[[1e12, 2e12], [3e12, 4e12]], [[9e12, 9e12]]]
	}]`)
	require.Empty(t, res.Issues)

	energies := res.Archive.Run[0].Calculation[0].BandStructurePhonon.Segment[0].Energies
	assert.Equal(t, [][][]float64{{
		{units.FrequencyToEnergy(1e12), units.FrequencyToEnergy(2e12)},
		{units.FrequencyToEnergy(3e12), units.FrequencyToEnergy(4e12)},
	}}, energies)
}

func TestPhononKPointsOmittedWithoutSystem(t *testing.T) {
	res := run(t, `[{
		"property-id": "tag:phonon-dispersion-relation",
		"response-frequency.si-value": [1e12],
		"wave-vector-direction.si-value": [[0.5, 0, 0]]
	}]`)
	assert.Empty(t, res.Issues)

	r := res.Archive.Run[0]
	assert.Empty(t, r.System)
	require.Len(t, r.Calculation, 1, "band structure creates a calculation")
	segment := r.Calculation[0].BandStructurePhonon.Segment[0]
	assert.Len(t, segment.Energies[0], 1)
	assert.Nil(t, segment.KPoints)
	assert.Contains(t, r.Extensions, "x_openkim_wave_vector_direction_si_value")
}

func TestPhononSingleFlatWaveVector(t *testing.T) {
	res := run(t, `[{
		"property-id": "tag:phonon-dispersion-relation",
		"a.si-value": 4e-10,
		"response-frequency.si-value": [1e12],
		"wave-vector-direction.si-value": [0.5, 0.5, 0]
	}]`)
	require.Empty(t, res.Issues)

	kpoints := res.Archive.Run[0].Calculation[0].BandStructurePhonon.Segment[0].KPoints
	require.Len(t, kpoints, 1)
	assert.InDelta(t, 2e-10, kpoints[0][0], 1e-22)
	assert.InDelta(t, 2e-10, kpoints[0][1], 1e-22)
	assert.Equal(t, 0.0, kpoints[0][2])
}

func TestPhononMalformedWaveVectorIsReported(t *testing.T) {
	res := run(t, `[{
		"property-id": "tag:phonon-dispersion-relation",
		"a.si-value": 4e-10,
		"response-frequency.si-value": [1e12],
		"wave-vector-direction.si-value": [[0.5, 0]]
	}]`)
	require.Equal(t, []ErrorKind{KindWorkflow}, issueKinds(res.Issues))
	assert.Nil(t, res.Archive.Run[0].Calculation[0].BandStructurePhonon.Segment[0].KPoints)
}

func TestPhononWaveNumberWithoutFrequency(t *testing.T) {
	res := run(t, `[{"property-id": "tag:phonon-dispersion-relation", "wave-number.si-value": [1, 2, 3]}]`)
	require.Empty(t, res.Issues)
	require.Len(t, res.Archive.Workflow, 1)

	assert.Equal(t, []float64{1, 2, 3}, res.Archive.Workflow[0].Phonon.WaveNumbers)
	assert.Empty(t, res.Archive.Run[0].Calculation, "no band structure without frequencies")
}

func TestClassifiersCoFire(t *testing.T) {
	res := run(t, `[{
		"property-id": "tag:elastic-constants-and-stacking-fault-energy",
		"c11.si-value": 1.0,
		"intrinsic-stacking-fault-energy.si-value": 0.1
	}]`)
	require.Empty(t, res.Issues)

	assert.Equal(t, []string{archive.WorkflowElastic, archive.WorkflowInterface}, workflowTypes(res.Archive))
	assert.Equal(t, 1.0, res.Archive.Workflow[0].Elastic.ElasticConstantsMatrixSecondOrder[0][0])
	assert.Equal(t, 0.1, *res.Archive.Workflow[1].Interface.EnergyIntrinsicStackingFault)
	assert.Equal(t, "tag:elastic-constants-and-stacking-fault-energy", res.Archive.Run[0].Extensions["x_openkim_property_id"])
}

func TestUnclassifiedRecordHasNoWorkflow(t *testing.T) {
	res := run(t, `[{"property-id": "tag:cohesive-energy-relation-cubic-crystal"}]`)
	assert.Empty(t, res.Archive.Workflow)
}
