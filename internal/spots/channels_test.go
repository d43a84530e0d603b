package spots

import (
	"errors"
	"testing"

	"spot-batch/internal/pyramid"
)

func testServer() *pyramid.MemServer {
	return pyramid.NewMemServer("img", 400, 400, []string{"DAPI", "SPOT", "GFP"}, 1)
}

func TestResolveChannelsByName(t *testing.T) {
	bindings, err := ResolveChannels([]string{"SPOT", "DAPI"}, testServer())
	if err != nil {
		t.Fatalf("ResolveChannels failed: %v", err)
	}
	want := []ChannelBinding{{"SPOT", 1}, {"DAPI", 0}}
	if len(bindings) != len(want) {
		t.Fatalf("got %d bindings, want %d", len(bindings), len(want))
	}
	for i := range want {
		if bindings[i] != want[i] {
			t.Errorf("binding %d = %+v, want %+v", i, bindings[i], want[i])
		}
	}
}

func TestResolveChannelsByIndex(t *testing.T) {
	bindings, err := ResolveChannels([]string{"2", "0"}, testServer())
	if err != nil {
		t.Fatalf("ResolveChannels failed: %v", err)
	}
	if bindings[0].Name != "GFP" || bindings[0].Index != 2 {
		t.Errorf("binding 0 = %+v", bindings[0])
	}
	if bindings[1].Name != "DAPI" || bindings[1].Index != 0 {
		t.Errorf("binding 1 = %+v", bindings[1])
	}
}

func TestResolveChannelsMixedSelectorsAreNames(t *testing.T) {
	// A non-integer selector in the list disables index interpretation.
	if _, err := ResolveChannels([]string{"1", "SPOT"}, testServer()); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("expected ErrChannelNotFound for name %q, got %v", "1", err)
	}
}

func TestResolveChannelsUnknown(t *testing.T) {
	if _, err := ResolveChannels([]string{"CY5"}, testServer()); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("expected ErrChannelNotFound, got %v", err)
	}
	if _, err := ResolveChannels([]string{"7"}, testServer()); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("expected ErrChannelNotFound for out-of-range index, got %v", err)
	}
}

func TestResolveChannelsEmpty(t *testing.T) {
	if _, err := ResolveChannels(nil, testServer()); !errors.Is(err, ErrNoChannels) {
		t.Errorf("expected ErrNoChannels, got %v", err)
	}
}
