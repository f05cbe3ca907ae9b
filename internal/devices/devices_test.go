package devices

import "testing"

func TestPresetsCount(t *testing.T) {
	if len(Presets) != 8 {
		t.Fatalf("len(Presets) = %d, want 8", len(Presets))
	}
}

func TestByNameCaseInsensitive(t *testing.T) {
	p, err := ByName("iphone 14")
	if err != nil {
		t.Fatalf("ByName: %v", err)
	}
	if p.Width != 390 || !p.Mobile || !p.Touch {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestByNameNotFound(t *testing.T) {
	if _, err := ByName("Nonexistent Device"); err == nil {
		t.Fatal("expected a device-not-found error")
	}
}

func TestValidateRejectsTinyDimensions(t *testing.T) {
	p := Profile{Width: 10, Height: 10, PixelRatio: 1.0, UserAgent: "x"}
	if err := p.Validate(); err == nil {
		t.Fatal("expected validation error for tiny dimensions")
	}
}
