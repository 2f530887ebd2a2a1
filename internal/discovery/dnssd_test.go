package discovery

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultServiceNameIncludesHostname(t *testing.T) {
	name := DefaultServiceName("ump2")
	assert.True(t, strings.HasPrefix(name, "ump2 on "))

	hostname, err := os.Hostname()
	if err == nil {
		short, _, _ := strings.Cut(hostname, ".")
		assert.Equal(t, "ump2 on "+short, name)
	}
}
