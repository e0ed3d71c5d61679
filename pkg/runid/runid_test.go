package runid

import "testing"

func TestHash(t *testing.T) {
	t.Parallel()

	if got := Hash("test"); got != "098f6bcd4621d373cade4e832627b4f6" {
		t.Errorf("Hash(test) = %q", got)
	}
}

func TestRunID(t *testing.T) {
	t.Parallel()

	if got := RunID("1", "2", "3", "4"); got != "3d66ff22fd43e3b37d3a4a06322cc636" {
		t.Errorf("RunID(1,2,3,4) = %q", got)
	}

	if RunID("1", "2", "3", "4") != RunID("1", "2", "3", "4") {
		t.Error("RunID must be deterministic")
	}
	if RunID("1", "2", "3", "4") == RunID("1", "2", "3", "5") {
		t.Error("different models must produce different ids")
	}
}
