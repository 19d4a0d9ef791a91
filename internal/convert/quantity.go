package convert

import (
	"fmt"

	"github.com/roach88/kimconv/internal/archive"
	"github.com/roach88/kimconv/internal/record"
)

// extractQuantities creates calculations from energies and temperatures and
// attaches stress to the last calculation.
//
// Energies and temperatures are aligned by position only: temperature n
// lands on calculation n, creating it when the energy series is shorter.
func (c *Converter) extractQuantities(res *runResult, v *record.View) {
	if v.Has(record.KeyEnergy) {
		energies, err := v.Floats(record.KeyEnergy)
		if err != nil {
			res.fail(KindQuantity, record.KeyEnergy, -1, err)
		}
		for n, e := range energies {
			res.run.CalculationAt(n).Energy = &archive.Energy{Total: e}
		}
	}

	if v.Has(record.KeyTemperature) {
		temps, err := v.Floats(record.KeyTemperature)
		if err != nil {
			res.fail(KindQuantity, record.KeyTemperature, -1, err)
		}
		for n, t := range temps {
			res.run.CalculationAt(n).Thermodynamics = &archive.Thermodynamics{Temperature: t}
		}
	}

	if v.Has(record.KeyStress) {
		// Checked before reading so that a rejected value is still passed through.
		if list, ok := v.Peek(record.KeyStress).([]any); !ok || len(list) != 6 {
			res.fail(KindQuantity, record.KeyStress, -1, fmt.Errorf("want a list of 6 Voigt components"))
			return
		}
		voigt, err := v.Floats(record.KeyStress)
		if err != nil {
			res.fail(KindQuantity, record.KeyStress, -1, err)
			return
		}
		res.run.LastCalculation().Stress = &archive.Stress{Total: voigtStress(voigt)}
	}
}
