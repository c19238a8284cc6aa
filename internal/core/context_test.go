package core

import (
	"context"
	"testing"
)

func TestUserIDFromContextRoundTrip(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), 42)
	if got := UserIDFromContext(ctx); got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestUserIDFromContextDefaultsToZero(t *testing.T) {
	if got := UserIDFromContext(context.Background()); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}
