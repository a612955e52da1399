package logging_test

import (
	"testing"

	"legacymod/internal/logging"
)

func TestNamedBeforeInitReturnsUsableLogger(t *testing.T) {
	log := logging.Named("graph")
	if log == nil {
		t.Fatal("Named should never return nil, even before Init")
	}
	log.Info("smoke test")
}

func TestInitThenNamedCarriesComponentField(t *testing.T) {
	if err := logging.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer logging.Sync()

	log := logging.Named("executor")
	if log == nil {
		t.Fatal("expected a non-nil logger after Init")
	}
	log.Info("executor ready")
}

func TestInitVerboseEnablesDebug(t *testing.T) {
	if err := logging.Init(true); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer logging.Sync()

	log := logging.Named("migration")
	log.Debug("verbose debug line")
}

func TestTimerStopOnNilDoesNotPanic(t *testing.T) {
	var timer *logging.Timer
	timer.Stop()
}

func TestStartTimerStop(t *testing.T) {
	timer := logging.StartTimer("graphstore", "Flush")
	timer.Stop()
}
