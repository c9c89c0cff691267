package loader

import (
	"testing"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlate(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{name: "labelled plate", text: "Placa: BJX 894", want: "BJX 894", wantOK: true},
		{name: "short label", text: "pl:m833753", want: "M833753", wantOK: true},
		{name: "hyphenated plate", text: "Placa= BJX-894", want: "BJX-894", wantOK: true},
		{name: "label wins over earlier digits", text: "Orden 123456 placa: ABC123", want: "ABC123", wantOK: true},
		{name: "motorcycle plate", text: "Moto M 782308", want: "M 782308", wantOK: true},
		{name: "cargo plate", text: "Vehiculo CL435475 diesel", want: "CL435475", wantOK: true},
		{name: "odometer only", text: "KM 45000", want: UnknownPlate, wantOK: true},
		{name: "odometer with colon", text: "km:45000", want: UnknownPlate, wantOK: true},
		{name: "empty", text: "   "},
		{name: "no plate", text: "Compra de suministros"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractPlate(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIssuerExcluded(t *testing.T) {
	company := testCompany()
	company.ExcludedIssuers = []string{"Gasolinera El Alto", "3-101-999999", " "}

	tests := []struct {
		name   string
		issuer string
		id     string
		want   bool
	}{
		{name: "same name", issuer: "Gasolinera El Alto", id: "3101000001", want: true},
		{name: "name ignores case and accents", issuer: "GASOLINERA  el álto", id: "3101000001", want: true},
		{name: "identifier", issuer: "Otra S.A.", id: "3101999999", want: true},
		{name: "other issuer", issuer: "Servicentro La Y", id: "3101000002"},
		{name: "blank entries never match", issuer: "", id: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, issuerExcluded(company, tt.issuer, tt.id))
		})
	}
}

func TestStructuredNormalizer_Plate(t *testing.T) {
	company := testCompany()
	company.ExcludedIssuers = []string{"Gasolinera El Alto"}

	tests := []struct {
		name   string
		issuer string
		note   string
		want   string
	}{
		{name: "plate from note", issuer: "Servicentro La Y", note: "Placa: BJX 894", want: "BJX 894"},
		{name: "excluded issuer", issuer: "Gasolinera El Alto", note: "Placa: BJX 894"},
		{name: "odometer only", issuer: "Servicentro La Y", note: "KM 45000", want: UnknownPlate},
		{name: "no note", issuer: "Servicentro La Y"},
	}

	n := NewStructuredNormalizer(company)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(model.SourceRecord{
				Origin:   model.OriginAuthoritative,
				Position: model.Position{Source: "f.xml", Index: 1},
				Fields: map[string]string{
					FieldDocument:     "1",
					FieldCounterparty: "3101000001",
					FieldDate:         "2024-05-10",
					FieldAmount:       "150.00",
					FieldDescription:  tt.issuer,
					FieldNote:         tt.note,
				},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Plate)
		})
	}
}
