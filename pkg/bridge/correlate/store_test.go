// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package correlate

import (
	"context"
	"testing"
)

func sample() Record {
	return Record{
		Workspace:        "acme",
		Channel:          "eng",
		PeerWorkspace:    "globex",
		PeerChannel:      "eng",
		PeerConversation: "C0PEER",
		PeerTS:           "1600000001.000200",
	}
}

func TestPutThenGet(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	ctx := context.Background()

	ok, err := store.Put(ctx, "1600000000.000100", sample())
	if err != nil || !ok {
		t.Fatalf("Put: got (%v, %v), want (true, nil)", ok, err)
	}

	rec, err := store.Get(ctx, "1600000000.000100")
	if err != nil {
		t.Fatalf("Get: unexpected error %v", err)
	}
	if rec == nil || *rec != sample() {
		t.Errorf("Get: got %+v, want %+v", rec, sample())
	}
}

func TestPutDuplicateRejected(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	ctx := context.Background()

	if ok, _ := store.Put(ctx, "ts1", sample()); !ok {
		t.Fatal("first Put failed")
	}

	altered := sample()
	altered.PeerTS = "9999999999.999999"
	if ok, _ := store.Put(ctx, "ts1", altered); ok {
		t.Error("duplicate Put succeeded, want rejection")
	}

	rec, _ := store.Get(ctx, "ts1")
	if rec == nil || rec.PeerTS != sample().PeerTS {
		t.Errorf("duplicate Put mutated stored value: got %+v", rec)
	}
}

func TestPutIncompleteRejected(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	ctx := context.Background()

	cases := []func(*Record){
		func(r *Record) { r.Workspace = "" },
		func(r *Record) { r.Channel = "" },
		func(r *Record) { r.PeerWorkspace = "" },
		func(r *Record) { r.PeerChannel = "" },
		func(r *Record) { r.PeerConversation = "" },
		func(r *Record) { r.PeerTS = "" },
	}
	for i, blank := range cases {
		rec := sample()
		blank(&rec)
		if ok, _ := store.Put(ctx, "ts", rec); ok {
			t.Errorf("case %d: incomplete record accepted", i)
		}
	}
	if ok, _ := store.Put(ctx, "", sample()); ok {
		t.Error("empty key accepted")
	}
}

func TestGetUnknownReturnsNil(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	rec, err := store.Get(context.Background(), "missing")
	if err != nil || rec != nil {
		t.Errorf("Get(missing): got (%+v, %v), want (nil, nil)", rec, err)
	}
}

func TestLinkCreatesBothDirections(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	ctx := context.Background()

	fwd := sample()
	ok, err := store.Link(ctx, "1600000000.000100", "C0ORIGIN", fwd)
	if err != nil || !ok {
		t.Fatalf("Link: got (%v, %v), want (true, nil)", ok, err)
	}

	got, _ := store.Get(ctx, "1600000000.000100")
	if got == nil || *got != fwd {
		t.Errorf("forward record: got %+v, want %+v", got, fwd)
	}

	back, _ := store.Get(ctx, fwd.PeerTS)
	want := Record{
		Workspace:        "globex",
		Channel:          "eng",
		PeerWorkspace:    "acme",
		PeerChannel:      "eng",
		PeerConversation: "C0ORIGIN",
		PeerTS:           "1600000000.000100",
	}
	if back == nil || *back != want {
		t.Errorf("backward record: got %+v, want %+v", back, want)
	}
}

func TestLinkDuplicateRejected(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	ctx := context.Background()

	if ok, _ := store.Link(ctx, "ts1", "C0ORIGIN", sample()); !ok {
		t.Fatal("first Link failed")
	}
	if ok, _ := store.Link(ctx, "ts1", "C0ORIGIN", sample()); ok {
		t.Error("duplicate Link succeeded, want rejection")
	}
}

func TestDeleteRemovesPair(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	ctx := context.Background()

	fwd := sample()
	if ok, _ := store.Link(ctx, "ts1", "C0ORIGIN", fwd); !ok {
		t.Fatal("Link failed")
	}

	ok, err := store.Delete(ctx, "ts1")
	if err != nil || !ok {
		t.Fatalf("Delete: got (%v, %v), want (true, nil)", ok, err)
	}
	if rec, _ := store.Get(ctx, "ts1"); rec != nil {
		t.Errorf("forward record survived delete: %+v", rec)
	}
	if rec, _ := store.Get(ctx, fwd.PeerTS); rec != nil {
		t.Errorf("backward record survived delete: %+v", rec)
	}
}

func TestDeleteByPeerTimestamp(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	ctx := context.Background()

	fwd := sample()
	if ok, _ := store.Link(ctx, "ts1", "C0ORIGIN", fwd); !ok {
		t.Fatal("Link failed")
	}

	// Deleting by the copy's timestamp must remove the origin record too.
	if ok, _ := store.Delete(ctx, fwd.PeerTS); !ok {
		t.Fatal("Delete by peer timestamp failed")
	}
	if rec, _ := store.Get(ctx, "ts1"); rec != nil {
		t.Errorf("origin record survived delete: %+v", rec)
	}
}

func TestDeleteUnknown(t *testing.T) {
	t.Parallel()
	store := NewMemory()
	if ok, _ := store.Delete(context.Background(), "missing"); ok {
		t.Error("Delete(missing) reported success")
	}
}
