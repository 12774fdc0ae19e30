package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexIntDecoding(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  int64
	}{
		{"number", `42`, 42},
		{"quoted number", `"42"`, 42},
		{"zero string", `"0"`, 0},
		{"empty string", `""`, 0},
		{"null", `null`, 0},
		{"float", `7.0`, 7},
		{"negative", `"-3"`, -3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var v FlexInt
			require.NoError(t, json.Unmarshal([]byte(tc.input), &v))
			assert.Equal(t, tc.want, v.Int64())
		})
	}
}

func TestFlexIntRejectsGarbage(t *testing.T) {
	var v FlexInt
	assert.Error(t, json.Unmarshal([]byte(`"banana"`), &v))
}

func TestFlexBoolDecoding(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{`true`, true},
		{`false`, false},
		{`1`, true},
		{`0`, false},
		{`"1"`, true},
		{`"0"`, false},
		{`""`, false},
		{`null`, false},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			var v FlexBool
			require.NoError(t, json.Unmarshal([]byte(tc.input), &v))
			assert.Equal(t, tc.want, v.Bool())
		})
	}
}

func TestFlexBoolRejectsGarbage(t *testing.T) {
	var v FlexBool
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &v))
}

func TestRawAppointmentDecoding(t *testing.T) {
	payload := []byte(`{
		"id": "1001",
		"active": "1",
		"created_at": 1609459200,
		"modified_at": "1609462800",
		"start_at": 1609466400,
		"duration": "30",
		"description": "Annual checkup",
		"type_id": "4",
		"status_id": 7,
		"animal_id": "55",
		"consult_id": null,
		"contact_id": "88",
		"sales_resource": "",
		"resources": [{"id": "9"}, {"id": 10}]
	}`)

	var appt RawAppointment
	require.NoError(t, json.Unmarshal(payload, &appt))

	assert.Equal(t, int64(1001), appt.ID.Int64())
	assert.True(t, appt.Active.Bool())
	assert.Equal(t, int64(1609462800), appt.ModifiedAt.Int64())
	assert.Equal(t, int64(4), appt.TypeID.Int64())
	assert.Equal(t, int64(7), appt.StatusID.Int64())
	require.NotNil(t, appt.AnimalID)
	assert.Equal(t, int64(55), appt.AnimalID.Int64())
	assert.Nil(t, appt.ConsultID)
	require.NotNil(t, appt.SalesResource)
	assert.Equal(t, int64(0), appt.SalesResource.Int64())
	require.Len(t, appt.Resources, 2)
	assert.Equal(t, int64(9), appt.Resources[0].ID.Int64())
	assert.Equal(t, int64(10), appt.Resources[1].ID.Int64())
}
