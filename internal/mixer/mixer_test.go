package mixer

import (
	"testing"

	"audiorack/internal/pcm"
)

type constProducer struct {
	left, right float32
}

func (p *constProducer) Produce(frames int) pcm.Frame {
	f := pcm.NewFrame(frames)
	for i := 0; i < frames; i++ {
		f.Samples[i*pcm.Channels] = p.left
		f.Samples[i*pcm.Channels+1] = p.right
	}
	return f
}

func TestMixSumsRowsWithGain(t *testing.T) {
	m := New()
	m.AddRow(Row{SourceID: "a", Producer: &constProducer{left: 0.2, right: 0.2}, Gain: 1, Balance: 0, EffectiveDuck: 1})
	m.AddRow(Row{SourceID: "b", Producer: &constProducer{left: 0.1, right: 0.1}, Gain: 1, Balance: 0, EffectiveDuck: 1})

	out := m.Mix(4)
	got := out.Samples[0]
	want := float32(0.3)
	if diff := got - want; diff > 1e-4 || diff < -1e-4 {
		t.Fatalf("expected summed left sample ~%v, got %v", want, got)
	}
}

func TestMixBalanceLaw(t *testing.T) {
	m := New()
	m.AddRow(Row{SourceID: "a", Producer: &constProducer{left: 1, right: 1}, Gain: 1, Balance: 0.5, EffectiveDuck: 1})

	out := m.Mix(1)
	// left gain = min(1, 1-0.5) = 0.5, right gain = min(1, 1+0.5) -> clamped to 1
	if out.Samples[0] > 0.51 || out.Samples[0] < 0.49 {
		t.Fatalf("expected left ~0.5 after balance, got %v", out.Samples[0])
	}
	if out.Samples[1] < 0.89 {
		t.Fatalf("expected right near 1.0 (clamped), got %v", out.Samples[1])
	}
}

func TestMixSoftClipsOverload(t *testing.T) {
	m := New()
	m.AddRow(Row{SourceID: "a", Producer: &constProducer{left: 1, right: 1}, Gain: 3, Balance: 0, EffectiveDuck: 1})

	out := m.Mix(1)
	if out.Samples[0] > 1.0 || out.Samples[0] < -1.0 {
		t.Fatalf("expected soft-clipped output within [-1,1], got %v", out.Samples[0])
	}
}

func TestMixMasterMute(t *testing.T) {
	m := New()
	m.AddRow(Row{SourceID: "a", Producer: &constProducer{left: 1, right: 1}, Gain: 1, Balance: 0, EffectiveDuck: 1})
	m.SetMasterMute(true)

	out := m.Mix(4)
	for _, s := range out.Samples {
		if s != 0 {
			t.Fatalf("expected silence under master mute, got %v", s)
		}
	}
}

func TestMixDuckAppliesToRowGain(t *testing.T) {
	m := New()
	m.AddRow(Row{SourceID: "bg", Producer: &constProducer{left: 1, right: 1}, Gain: 1, Balance: 0, EffectiveDuck: 1})
	if err := m.SetRowDuck("bg", 0.2); err != nil {
		t.Fatal(err)
	}
	out := m.Mix(1)
	if out.Samples[0] > 0.21 {
		t.Fatalf("expected ducked gain ~0.2, got %v", out.Samples[0])
	}
}

func TestAddRowReplacesExistingBySourceID(t *testing.T) {
	m := New()
	m.AddRow(Row{SourceID: "a", Producer: &constProducer{left: 1}, Gain: 1, EffectiveDuck: 1})
	m.AddRow(Row{SourceID: "a", Producer: &constProducer{left: 1}, Gain: 0.5, EffectiveDuck: 1})

	rows := m.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row after replace, got %d", len(rows))
	}
	if rows[0].Gain != 0.5 {
		t.Fatalf("expected replaced gain 0.5, got %v", rows[0].Gain)
	}
}

func TestRemoveRow(t *testing.T) {
	m := New()
	m.AddRow(Row{SourceID: "a", Producer: &constProducer{}, Gain: 1, EffectiveDuck: 1})
	m.RemoveRow("a")
	if len(m.Rows()) != 0 {
		t.Fatal("expected row removed")
	}
}

func TestSetRowGainUnknownSourceReturnsNotFound(t *testing.T) {
	m := New()
	if err := m.SetRowGain("missing", 0.5); err == nil {
		t.Fatal("expected error for unknown row")
	}
}

func TestOutputStreamDropOldestFanOut(t *testing.T) {
	s := NewOutputStream(2)
	c, unsub := s.Subscribe()
	defer unsub()

	s.Publish(pcm.NewFrame(1))
	s.Publish(pcm.NewFrame(1))
	s.Publish(pcm.NewFrame(1))

	if c.Dropped() != 1 {
		t.Fatalf("expected 1 dropped frame, got %d", c.Dropped())
	}
}

func TestOutputStreamUnsubscribeStopsDelivery(t *testing.T) {
	s := NewOutputStream(4)
	c, unsub := s.Subscribe()
	unsub()
	s.Publish(pcm.NewFrame(1))
	if _, ok := c.Pull(); ok {
		t.Fatal("expected no delivery after unsubscribe")
	}
	if s.ConsumerCount() != 0 {
		t.Fatal("expected consumer count 0 after unsubscribe")
	}
}
