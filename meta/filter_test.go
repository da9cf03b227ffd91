package meta

import "testing"

func TestFilter(t *testing.T) {
	f := NewFilter()
	golden := []struct {
		t    Type
		want bool
	}{
		{t: TypeStreamInfo, want: true},
		{t: TypePadding, want: false},
		{t: TypeApplication, want: true},
		{t: TypeSeekTable, want: true},
		{t: TypeVorbisComment, want: true},
		{t: TypeCueSheet, want: true},
		{t: TypePicture, want: true},
		{t: 42, want: true},
	}
	for _, g := range golden {
		if got := f.Wants(g.t); got != g.want {
			t.Errorf("default filter mismatch for %v; expected %v, got %v", g.t, g.want, got)
		}
	}

	f.IgnoreAll()
	if f.Wants(TypeStreamInfo) || f.Wants(TypeApplication) {
		t.Error("expected every type to be ignored")
	}
	f.Respond(TypeVorbisComment)
	if !f.Wants(TypeVorbisComment) || f.Wants(TypePicture) {
		t.Error("expected only vorbis comments to be delivered")
	}
}

func TestFilterApplication(t *testing.T) {
	// Ignore list while application blocks are responded to.
	f := NewFilter()
	f.IgnoreApplication("riff")
	if f.WantsApplication("riff") || !f.WantsApplication("aiff") {
		t.Error("expected riff to be ignored and aiff to be delivered")
	}
	// Respond list while application blocks are ignored.
	f.Ignore(TypeApplication)
	if f.Wants(TypeApplication) {
		t.Error("expected application blocks to be ignored")
	}
	f.RespondApplication("w64 ")
	if !f.Wants(TypeApplication) {
		t.Error("expected application blocks to be read for the respond list")
	}
	if !f.WantsApplication("w64 ") || f.WantsApplication("riff") {
		t.Error("expected only w64 to be delivered")
	}
	// Responding to the type clears the lists.
	f.Respond(TypeApplication)
	if !f.WantsApplication("riff") || !f.WantsApplication("w64 ") {
		t.Error("expected every application ID to be delivered")
	}
}
