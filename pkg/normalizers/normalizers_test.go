package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "acme renewal q3", NormalizeText("  Acme   Renewal\tQ3 "))
	assert.Equal(t, "", NormalizeText("   "))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane.doe@acme.com", NormalizeEmail(" Jane.Doe@ACME.com "))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "15551234567", NormalizePhone("+1 (555) 123-4567"))
	assert.Equal(t, "", NormalizePhone("ext"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "acme", NormalizeName("Acme Corporation"))
	assert.Equal(t, "acme", NormalizeName("ACME Corp."))
	assert.Equal(t, "john smith", NormalizeName("John Smith Jr."))
	assert.Equal(t, "oreilly media", NormalizeName("O'Reilly Media"))
}
