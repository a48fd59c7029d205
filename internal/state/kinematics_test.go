package state

import (
	"math"
	"testing"
	"time"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
)

const eps = 1e-9

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewClamps(t *testing.T) {
	v := New(1.7, -3, epoch)
	if v.Value != 1 || v.Interaction != -1 {
		t.Fatalf("expected clamped (1,-1), got (%f,%f)", v.Value, v.Interaction)
	}
	if v.Confidence != 1 {
		t.Fatalf("expected confidence 1, got %f", v.Confidence)
	}
	if Clamp(math.NaN()) != 0 {
		t.Fatal("NaN should clamp to 0")
	}
}

func TestEffectiveRateCapsAndDamps(t *testing.T) {
	k := catalog.For(catalog.Venture)
	v := Vector{DValueDt: -0.2, DInteractionDt: 5}
	got := EffectiveValueRate(v, catalog.Venture)
	want := -0.2 / (1 + k.Inertia)
	if math.Abs(got-want) > eps {
		t.Fatalf("effective value rate = %f, want %f", got, want)
	}
	gotI := EffectiveInteractionRate(v, catalog.Venture)
	wantI := k.MaxInteractionDeltaPerDay / (1 + k.Inertia)
	if math.Abs(gotI-wantI) > eps {
		t.Fatalf("effective interaction rate = %f, want capped %f", gotI, wantI)
	}
}

func TestInertiaOrdering(t *testing.T) {
	v := Vector{DValueDt: 0.01}
	cats := catalog.Categories()
	for _, a := range cats {
		for _, b := range cats {
			ka, kb := catalog.For(a), catalog.For(b)
			if ka.Inertia <= kb.Inertia {
				continue
			}
			ra := math.Abs(EffectiveValueRate(v, a))
			rb := math.Abs(EffectiveValueRate(v, b))
			if ra >= rb {
				t.Errorf("%s (inertia %.2f) rate %f not below %s (inertia %.2f) rate %f",
					a, ka.Inertia, ra, b, kb.Inertia, rb)
			}
		}
	}
}

func TestPredictRangeAndTimestamp(t *testing.T) {
	v := Vector{Value: 0.9, Interaction: -0.9, DValueDt: 0.2, DInteractionDt: -0.3,
		D2ValueDt2: 0.1, D2InteractionDt2: -0.1, Confidence: 1, Timestamp: epoch}
	p := Predict(v, catalog.Individual, 90, DefaultDecayConfig())
	if p.Value != 1 || p.Interaction != -1 {
		t.Fatalf("expected saturated (1,-1), got (%f,%f)", p.Value, p.Interaction)
	}
	if !p.Timestamp.Equal(epoch.Add(90 * 24 * time.Hour)) {
		t.Fatalf("timestamp not advanced by 90 days: %v", p.Timestamp)
	}
	if p.Entropy <= 0 {
		t.Fatalf("expected entropy to grow, got %f", p.Entropy)
	}
}

func TestPredictZeroDaysIsIdentity(t *testing.T) {
	v := Vector{Value: 0.3, Interaction: 0.1, DValueDt: -0.05, Confidence: 0.8, Timestamp: epoch}
	p := Predict(v, catalog.LargeOrg, 0, DefaultDecayConfig())
	if p.Value != v.Value || p.Confidence != v.Confidence {
		t.Fatalf("zero-day prediction changed state: %+v", p)
	}
	neg := Predict(v, catalog.LargeOrg, -5, DefaultDecayConfig())
	if neg.Value != v.Value || !neg.Timestamp.Equal(epoch) {
		t.Fatalf("negative horizon should behave like zero: %+v", neg)
	}
}

func TestPredictConfidenceFormula(t *testing.T) {
	v := Vector{Confidence: 1, Timestamp: epoch}
	k := catalog.For(catalog.Municipality)
	p := Predict(v, catalog.Municipality, 14, DefaultDecayConfig())
	want := math.Pow(0.99-k.Inertia*0.04, 2)
	if math.Abs(p.Confidence-want) > eps {
		t.Fatalf("confidence = %f, want %f", p.Confidence, want)
	}
}

func TestConfidenceMonotonic(t *testing.T) {
	v := Vector{Value: 0.1, DValueDt: -0.01, Confidence: 0.9, Timestamp: epoch}
	for _, c := range catalog.Categories() {
		prev := math.Inf(1)
		for days := 0.0; days <= 730; days += 3.5 {
			conf := Predict(v, c, days, DefaultDecayConfig()).Confidence
			if conf > prev {
				t.Fatalf("%s: confidence rose from %g to %g at %f days", c, prev, conf, days)
			}
			if conf <= 0 || conf > 1 {
				t.Fatalf("%s: confidence %g outside (0,1]", c, conf)
			}
			prev = conf
		}
	}
}

func TestTimeToCritical(t *testing.T) {
	v := Vector{Value: 0.2, DValueDt: -0.1}
	days, ok := TimeToCritical(v, catalog.Nation)
	if !ok {
		t.Fatal("expected finite time to critical")
	}
	want := 0.7 / math.Abs(EffectiveValueRate(v, catalog.Nation))
	if math.Abs(days-want) > 1e-6 {
		t.Fatalf("time to critical = %f, want %f", days, want)
	}
	if IsCritical(v, catalog.Nation) {
		t.Fatal("0.2 should not be critical for nation")
	}
	if IsCritical(Vector{Value: -0.49}, catalog.Nation) {
		t.Fatal("-0.49 should not be critical for nation")
	}
	if !IsCritical(Vector{Value: -0.5}, catalog.Nation) {
		t.Fatal("-0.5 should be critical for nation")
	}
}

func TestTimeToCriticalEdges(t *testing.T) {
	if _, ok := TimeToCritical(Vector{Value: 0.2, DValueDt: 0}, catalog.Venture); ok {
		t.Fatal("flat rate should not approach critical")
	}
	if _, ok := TimeToCritical(Vector{Value: 0.2, DValueDt: 0.1}, catalog.Venture); ok {
		t.Fatal("rising rate should not approach critical")
	}
	days, ok := TimeToCritical(Vector{Value: -0.8, DValueDt: -0.1}, catalog.Venture)
	if !ok || days != 0 {
		t.Fatalf("already critical should report (0,true), got (%f,%v)", days, ok)
	}
}
