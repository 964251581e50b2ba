package devicemgr

import (
	"strconv"
	"sync"
	"testing"

	"audiorack/internal/errs"
)

// fakeEnumerator is the test double for Enumerator, mirroring the
// teacher's paStream test-double split (rustyguts-bken/client/audio_test.go).
type fakeEnumerator struct {
	outputs []Device
	inputs  []Device
	def     *Device
}

func (f *fakeEnumerator) Outputs() ([]Device, error)       { return f.outputs, nil }
func (f *fakeEnumerator) Inputs() ([]Device, error)         { return f.inputs, nil }
func (f *fakeEnumerator) DefaultOutput() (*Device, error)   { return f.def, nil }

func TestListOutputsAndInputs(t *testing.T) {
	fe := &fakeEnumerator{
		outputs: []Device{{ID: "0", Name: "Speakers"}},
		inputs:  []Device{{ID: "1", Name: "Turntable (USB)"}},
	}
	m := New(fe)

	outs, err := m.ListOutputs()
	if err != nil || len(outs) != 1 || outs[0].Name != "Speakers" {
		t.Fatalf("unexpected outputs: %#v err=%v", outs, err)
	}
	ins, err := m.ListInputs()
	if err != nil || len(ins) != 1 || ins[0].Name != "Turntable (USB)" {
		t.Fatalf("unexpected inputs: %#v err=%v", ins, err)
	}
}

// TestUSBContentionS4 reproduces spec seed scenario S4.
func TestUSBContentionS4(t *testing.T) {
	m := New(&fakeEnumerator{})
	const port = "/dev/ttyUSB0"

	if m.IsUSBPortInUse(port) {
		t.Fatal("expected port free initially")
	}

	if err := m.ReserveUSBPort(port, "S1"); err != nil {
		t.Fatalf("S1 reserve should succeed: %v", err)
	}
	if !m.IsUSBPortInUse(port) {
		t.Fatal("expected port in use after reserve")
	}

	err := m.ReserveUSBPort(port, "S2")
	if !errs.Is(err, errs.Conflict) {
		t.Fatalf("expected Conflict for S2, got %v", err)
	}

	m.ReleaseUSBPort(port)
	if m.IsUSBPortInUse(port) {
		t.Fatal("expected port free after release")
	}

	if err := m.ReserveUSBPort(port, "S2"); err != nil {
		t.Fatalf("S2 reserve should succeed after release: %v", err)
	}
}

// TestReserveLinearizability is property 2 from spec §8: under
// concurrent reservation attempts for the same port, exactly one
// succeeds.
func TestReserveLinearizability(t *testing.T) {
	m := New(&fakeEnumerator{})
	const port = "/dev/ttyUSB0"
	const attempts = 50

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.ReserveUSBPort(port, ownerName(i))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d", successes)
	}
}

func ownerName(i int) string {
	return "owner-" + strconv.Itoa(i)
}

func TestReleaseNonHeldPortIsNoop(t *testing.T) {
	m := New(&fakeEnumerator{})
	m.ReleaseUSBPort("/dev/ttyUSB9") // must not panic
	if m.IsUSBPortInUse("/dev/ttyUSB9") {
		t.Fatal("unexpected reservation")
	}
}

func TestSetOutputRequiresID(t *testing.T) {
	m := New(&fakeEnumerator{})
	if err := m.SetOutput(""); !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if err := m.SetOutput("dev-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ActiveOutput() != "dev-1" {
		t.Fatalf("expected active output dev-1, got %q", m.ActiveOutput())
	}
}
