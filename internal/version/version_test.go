package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	tests := []struct {
		version string
		target  string
		want    bool
	}{
		{version: "0.3.0", target: "0.2.9", want: true},
		{version: "0.3.0", target: "0.3.0", want: true},
		{version: "0.3.0", target: "0.10.0", want: false},
		{version: "v1.0.0", target: "0.9.9", want: true},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, IsVersionGreaterOrEqualThan(test.version, test.target), "%s >= %s", test.version, test.target)
	}
}

func TestIsVersionGreaterThan(t *testing.T) {
	assert.True(t, IsVersionGreaterThan("0.3.1", "0.3.0"))
	assert.False(t, IsVersionGreaterThan("0.3.0", "0.3.0"))
}

func TestGetMinorVersion(t *testing.T) {
	assert.Equal(t, "0.25", GetMinorVersion("0.25.1"))
	assert.Equal(t, "1.2", GetMinorVersion("1.2.0"))
}
