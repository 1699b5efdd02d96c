package memory

import (
	"testing"

	"github.com/UniAttendHQ/uniattend/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	storetest.Common(t, factory{}, nil)
}
