package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumberSpaces(t *testing.T) {
	assert.Equal(t, "1 234 567", FormatNumberSpaces(1234567))
	assert.Equal(t, "999", FormatNumberSpaces(999))
	assert.Equal(t, "0", FormatNumberSpaces(0))
}

func TestFormatWonShort(t *testing.T) {
	assert.Equal(t, "31.9 млн.", FormatWonShort(31_900_000))
	assert.Equal(t, "500.0 тыс.", FormatWonShort(500_000))
	assert.Equal(t, "900", FormatWonShort(900))
}

func TestFormatRangeText(t *testing.T) {
	assert.Equal(t, "10 000 - 50 000 км.", FormatRangeText(10000, 50000, true, "км."))
	assert.Equal(t, "от 0 до 80 000 км.", FormatRangeText(80000, 80000, false, "км."))
}
