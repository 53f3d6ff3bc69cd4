package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidContactType(t *testing.T) {
	assert.True(t, ValidContactType("Institutional Donor"))
	assert.True(t, ValidContactType("Vendor"))
	assert.False(t, ValidContactType("institutional donor")) // labels are exact
	assert.False(t, ValidContactType(""))
	assert.False(t, ValidContactType("Sponsor"))
}

func TestValidContactTypes_Count(t *testing.T) {
	// The taxonomy is fixed at 19 values; the enum fields on the remote side
	// are provisioned from this list.
	assert.Len(t, ValidContactTypes, 19)
}
