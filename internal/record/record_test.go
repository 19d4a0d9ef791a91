package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"cohesive-potential-energy.si-value", "cohesive_potential_energy_si_value"},
		{"tag:staff@noreply.openkim.org,2014-04-15:property/x", "tag_staff_noreply_openkim_org_2014_04_15_property_x"},
		{"already_clean", "already_clean"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeKey(tt.in))
	}
}

func TestIdentifierPriority(t *testing.T) {
	rec := Record{
		"property-id": "tag:prop",
		"meta.uuid":   "abc-123",
	}
	id, ok := rec.Identifier()
	require.True(t, ok)
	assert.Equal(t, "abc-123", id)

	rec = Record{"meta.subject.short-id": "MO_000000000000_000"}
	id, ok = rec.Identifier()
	require.True(t, ok)
	assert.Equal(t, "MO_000000000000_000", id)

	_, ok = Record{"a.si-value": 1.0}.Identifier()
	assert.False(t, ok)
}

func TestDecodeRecords(t *testing.T) {
	recs, err := DecodeRecords([]byte(`[{"a.si-value": 1.5}, {"property-id": "x"}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1.5, recs[0]["a.si-value"])
}

func TestDecodeRecordsRejectsNonArray(t *testing.T) {
	_, err := DecodeRecords([]byte(`{"run": []}`))
	assert.Error(t, err)

	_, err = DecodeRecords([]byte(`[1, 2]`))
	assert.Error(t, err)

	_, err = DecodeRecords([]byte(`[null]`))
	assert.Error(t, err)
}

func TestKeysSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Record{"c": 1, "a": 2, "b": 3}.Keys())
}
