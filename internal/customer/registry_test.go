package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

func TestInputValidate(t *testing.T) {
	cases := []struct {
		name    string
		in      Input
		wantErr bool
	}{
		{name: "email only", in: Input{Email: "ana@example.com"}},
		{name: "phone only", in: Input{Phone: "+584141234567"}},
		{name: "both contacts", in: Input{Email: "ana@example.com", Phone: "+584141234567"}},
		{name: "no contact at all", in: Input{Name: "Ana"}, wantErr: true},
		{name: "valid identification", in: Input{Email: "a@b.c", Identification: "V12345678"}},
		{name: "identification too short", in: Input{Email: "a@b.c", Identification: "V1234"}, wantErr: true},
		{name: "identification no letter", in: Input{Email: "a@b.c", Identification: "12345678"}, wantErr: true},
		{name: "identification lowercase", in: Input{Email: "a@b.c", Identification: "v12345678"}, wantErr: true},
		{name: "identification letters inside", in: Input{Email: "a@b.c", Identification: "V12A45678"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	in := Input{
		Name:           "  Ana ",
		Surname:        " Pérez ",
		Email:          " ANA@Example.COM ",
		Phone:          " +58 414 ",
		Identification: " v12345678 ",
	}
	in.normalize()
	assert.Equal(t, "Ana", in.Name)
	assert.Equal(t, "Pérez", in.Surname)
	assert.Equal(t, "ana@example.com", in.Email)
	assert.Equal(t, "+58 414", in.Phone)
	assert.Equal(t, "V12345678", in.Identification)
}

func TestMergeNeverErasesStoredFields(t *testing.T) {
	c := &model.Customer{
		Name:           "Ana",
		Surname:        "Pérez",
		Phone:          "+584141234567",
		Email:          "ana@example.com",
		Identification: "V12345678",
	}
	Merge(c, Input{Email: "ana.new@example.com"})

	assert.Equal(t, "ana.new@example.com", c.Email)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, "Pérez", c.Surname)
	assert.Equal(t, "+584141234567", c.Phone)
	assert.Equal(t, "V12345678", c.Identification)
}

func TestMergeFillsEmptyFields(t *testing.T) {
	c := &model.Customer{Email: "ana@example.com"}
	Merge(c, Input{Name: "Ana", Phone: "+58414", Identification: "V12345678"})

	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, "+58414", c.Phone)
	assert.Equal(t, "V12345678", c.Identification)
	assert.Equal(t, "ana@example.com", c.Email)
}
