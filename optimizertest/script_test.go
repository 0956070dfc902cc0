package optimizertest

import "testing"

func TestScripts(t *testing.T) {
	testScripts(t)
}
