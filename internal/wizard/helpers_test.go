package wizard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/ecapsule/internal/api"
	"github.com/hpungsan/ecapsule/internal/capsule"
)

var (
	testNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	gifHeader = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00")
)

func fixedClock() time.Time { return testNow }

func pngBlob(name string) capsule.Blob {
	return capsule.Blob{Name: name, Data: pngHeader}
}

// validDraft returns a draft that passes every rule at testNow.
func validDraft() capsule.Draft {
	d := capsule.NewDraft()
	d.Title = "Summer 2026"
	d.Description = "The lake house"
	d.Images = []capsule.Image{{Name: "a.png", MediaType: "image/png", Data: pngHeader, Caption: "dock"}}
	d.OpeningTime = testNow.Add(365 * 24 * time.Hour)
	d.Vision = "Open it with everyone"
	d.Privacy = capsule.PrivacyFriends
	d.Design = "vault"
	d.SharedWith = []string{"u1"}
	return d
}

// fillWizard populates every field through the public API.
func fillWizard(t *testing.T, w *Wizard) {
	t.Helper()
	require.NoError(t, w.SetField(capsule.FieldTitle, "Summer 2026"))
	require.NoError(t, w.SetField(capsule.FieldDescription, "The lake house"))
	added, err := w.AddImage(pngBlob("a.png"))
	require.NoError(t, err)
	require.True(t, added)
	require.NoError(t, w.SetImageCaption(0, "dock"))
	require.NoError(t, w.SetField(capsule.FieldTime, testNow.Add(time.Hour)))
	require.NoError(t, w.SetField(capsule.FieldVision, "Open it with everyone"))
	require.NoError(t, w.SetField(capsule.FieldPrivacy, "friends"))
	require.NoError(t, w.SetField(capsule.FieldDesign, "vault"))
	require.NoError(t, w.ToggleRecipient("u1"))
}

// walkToFinal advances through every step, failing the test if one is blocked.
func walkToFinal(t *testing.T, w *Wizard) {
	t.Helper()
	for !w.IsFinal() {
		require.True(t, w.Next(), "blocked on step %q: %v", w.Step().Key, w.Errors())
	}
}

// fakeCreator records create requests. When block is non-nil each call waits
// on it before answering.
type fakeCreator struct {
	mu      sync.Mutex
	calls   atomic.Int32
	reqs    []*api.CreateRequest
	started chan struct{}
	block   chan struct{}
	err     error
	id      api.ID
}

func (f *fakeCreator) CreateCapsule(ctx context.Context, req *api.CreateRequest) (*api.Created, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	id := f.id
	if id == "" {
		id = "c-1"
	}
	return &api.Created{ID: id}, nil
}

func (f *fakeCreator) lastRequest() *api.CreateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		return nil
	}
	return f.reqs[len(f.reqs)-1]
}
