package scope

import (
	"context"
	"testing"
)

func TestCaptureRoundTrip(t *testing.T) {
	t.Parallel()

	ident := Identity{OwnerID: "own-1", ProjectID: "prj-1", Environment: "production"}
	ctx := With(context.Background(), ident)

	if got := Capture(ctx); got != ident {
		t.Errorf("Capture = %+v, want %+v", got, ident)
	}
}

func TestCaptureEmpty(t *testing.T) {
	t.Parallel()

	if got := Capture(context.Background()); !got.Zero() {
		t.Errorf("Capture on bare context = %+v, want zero", got)
	}
}

func TestWithZeroIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := With(ctx, Identity{}); got != ctx {
		t.Error("With(zero identity) should return the context unchanged")
	}
}
