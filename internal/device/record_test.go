package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		name string
		want Type
	}{
		{"Sony WH-1000XM4 Headphones", TypeHeadphones},
		{"AirPods Pro", TypeHeadphones},
		{"Galaxy Buds2", TypeHeadphones},
		{"Jabra Elite Earbuds", TypeHeadphones},
		{"JBL Flip 5 Speaker", TypeSpeaker},
		{"Logitech MX Keys Keyboard", TypeKeyboard},
		{"MX Master 3 Mouse", TypeMouse},
		{"Xbox Wireless Controller", TypeGamepad},
		{"8BitDo Gamepad", TypeGamepad},
		{"Fitbit Charge 5", TypeOther},
		{"", TypeOther},
		{UnknownName, TypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferType(tt.name))
		})
	}
}

func TestInferTypeFirstRuleWins(t *testing.T) {
	// "Speaker Headphone Adapter" matches both; headphones is listed first.
	assert.Equal(t, TypeHeadphones, InferType("Speaker Headphone Adapter"))
}

func TestTypeValid(t *testing.T) {
	assert.False(t, TypeUnknown.Valid())
	assert.False(t, Type("toaster").Valid())
	for _, typ := range []Type{TypeHeadphones, TypeSpeaker, TypeKeyboard, TypeMouse, TypeGamepad, TypeOther} {
		assert.True(t, typ.Valid(), typ)
	}
}

func TestClampBattery(t *testing.T) {
	assert.Equal(t, 0, ClampBattery(-5))
	assert.Equal(t, 0, ClampBattery(0))
	assert.Equal(t, 57, ClampBattery(57))
	assert.Equal(t, 100, ClampBattery(100))
	assert.Equal(t, 100, ClampBattery(255))
}

func TestDisplayName(t *testing.T) {
	r := Record{Name: "JBL Flip 5"}
	assert.Equal(t, "JBL Flip 5", r.DisplayName())

	r.CustomName = "Kitchen"
	assert.Equal(t, "Kitchen", r.DisplayName())
}
