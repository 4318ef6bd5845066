package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Idempotent(t *testing.T) {
	valid := []string{
		"+4915112345678",
		"+12025550123",
		"whatsapp:+4915112345678",
		"  +447700900123 ",
		"+123456789012345",
	}
	for _, in := range valid {
		t.Run(in, func(t *testing.T) {
			once, err := Normalize(in)
			require.NoError(t, err)
			twice, err := Normalize(once)
			require.NoError(t, err)
			assert.Equal(t, once, twice)
			assert.True(t, IsValidAddress(in))
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	malformed := []string{
		"",
		"4915112345678",     // missing +
		"+49123",            // too short
		"+0123456789",       // leading zero
		"+1234567890123456", // too long
		"+49 151 1234",      // spaces inside
		"whatsapp:",
		"+49abc1234567",
	}
	for _, in := range malformed {
		t.Run(in, func(t *testing.T) {
			assert.False(t, IsValidAddress(in))
			_, err := Normalize(in)
			assert.ErrorIs(t, err, ErrInvalidPhoneNumber)
		})
	}
}

func TestToChannelAddress(t *testing.T) {
	addr, err := ToChannelAddress("+4915112345678", "whatsapp")
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:+4915112345678", addr)

	addr, err = ToChannelAddress("whatsapp:+4915112345678", "whatsapp")
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:+4915112345678", addr, "prefix is not doubled")

	addr, err = ToChannelAddress("whatsapp:+4915112345678", "sms")
	require.NoError(t, err)
	assert.Equal(t, "+4915112345678", addr)

	_, err = ToChannelAddress("+49123", "sms")
	assert.ErrorIs(t, err, ErrInvalidPhoneNumber)
}

func TestHasChannelPrefix(t *testing.T) {
	assert.True(t, HasChannelPrefix("whatsapp:+4915112345678"))
	assert.True(t, HasChannelPrefix("WhatsApp:+4915112345678"))
	assert.False(t, HasChannelPrefix("+4915112345678"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "**********5678", Mask("+4915112345678"))
	assert.Equal(t, "****", Mask("+49"))
}
