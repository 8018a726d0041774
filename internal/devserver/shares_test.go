package devserver

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/ecapsule/internal/api"
	"github.com/hpungsan/ecapsule/internal/db"
)

func TestListCapsules_OwnerAndRecipient(t *testing.T) {
	env := setupServer(t)
	ann := env.login(t, "ann@example.com", "secret")
	bob := env.login(t, "bob@example.com", "hunter2")

	created, err := ann.CreateCapsule(context.Background(), validRequest(env.bob.ID))
	require.NoError(t, err)

	mine, err := ann.ListCapsules(context.Background())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, created.ID, mine[0].ID)
	require.True(t, mine[0].IsOwner)
	require.Empty(t, mine[0].Status)
	require.True(t, mine[0].OpeningTime.Equal(testNow.Add(24*time.Hour)))

	theirs, err := bob.ListCapsules(context.Background())
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	require.False(t, theirs[0].IsOwner)
	require.Equal(t, api.StatusPending, theirs[0].Status)
	require.Equal(t, "Ann", theirs[0].OwnerName)
	require.False(t, theirs[0].InCollection())
}

func TestShareStatus_Decline(t *testing.T) {
	env := setupServer(t)
	ann := env.login(t, "ann@example.com", "secret")
	bob := env.login(t, "bob@example.com", "hunter2")

	_, err := ann.CreateCapsule(context.Background(), validRequest(env.bob.ID))
	require.NoError(t, err)

	shared, err := bob.ListShared(context.Background())
	require.NoError(t, err)
	require.Len(t, shared, 1)
	require.Equal(t, "Ann", shared[0].SharedBy)
	require.Equal(t, "Summer", shared[0].Title)

	require.NoError(t, bob.DeclineShare(context.Background(), shared[0]))

	shared, err = bob.ListShared(context.Background())
	require.NoError(t, err)
	require.Empty(t, shared)

	status, body, _ := get(t, env.srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `ecapsule_share_answers_total{status="declined"} 1`)
}

func TestShareStatus_OnlyRecipientMayAnswer(t *testing.T) {
	env := setupServer(t)
	ann := env.login(t, "ann@example.com", "secret")
	bob := env.login(t, "bob@example.com", "hunter2")

	_, err := ann.CreateCapsule(context.Background(), validRequest(env.bob.ID))
	require.NoError(t, err)
	shared, err := bob.ListShared(context.Background())
	require.NoError(t, err)
	require.Len(t, shared, 1)

	err = ann.SetShareStatus(context.Background(), shared[0], api.StatusAccepted)
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusNotFound, se.Status)

	err = bob.SetShareStatus(context.Background(), shared[0], "maybe")
	var fe *api.FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Contains(t, fe.Fields, "status")

	wrong := shared[0]
	wrong.CapsuleID = "other"
	err = bob.SetShareStatus(context.Background(), wrong, api.StatusAccepted)
	require.ErrorAs(t, err, &fe)
	require.Contains(t, fe.Fields, "capsule_id")
}

func TestAcceptShare_AddsImages(t *testing.T) {
	env := setupServer(t)
	ann := env.login(t, "ann@example.com", "secret")
	bob := env.login(t, "bob@example.com", "hunter2")

	created, err := ann.CreateCapsule(context.Background(), validRequest(env.bob.ID))
	require.NoError(t, err)
	shared, err := bob.ListShared(context.Background())
	require.NoError(t, err)
	require.Len(t, shared, 1)

	err = bob.AcceptShare(context.Background(), shared[0], []api.ImagePart{
		{FileName: "b.png", MediaType: "image/png", Data: pngHeader, Caption: "from bob"},
	})
	require.NoError(t, err)

	stored, err := db.GetCapsule(context.Background(), env.db, string(created.ID))
	require.NoError(t, err)
	require.Len(t, stored.Draft.Images, 2)
	require.Equal(t, "from bob", stored.Draft.Images[1].Caption)

	list, err := bob.ListCapsules(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, api.StatusAccepted, list[0].Status)
	require.True(t, list[0].InCollection())
}

func TestAcceptShare_BadImageResetsToPending(t *testing.T) {
	env := setupServer(t)
	ann := env.login(t, "ann@example.com", "secret")
	bob := env.login(t, "bob@example.com", "hunter2")

	created, err := ann.CreateCapsule(context.Background(), validRequest(env.bob.ID))
	require.NoError(t, err)
	shared, err := bob.ListShared(context.Background())
	require.NoError(t, err)
	require.Len(t, shared, 1)

	err = bob.AcceptShare(context.Background(), shared[0], []api.ImagePart{
		{FileName: "notes.txt", MediaType: "text/plain", Data: []byte("hello")},
	})
	var fe *api.FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Contains(t, fe.Fields, "images.0")

	s, err := db.GetShareFor(context.Background(), env.db, string(created.ID), env.bob.ID)
	require.NoError(t, err)
	require.Equal(t, api.StatusPending, string(s.Status))

	stored, err := db.GetCapsule(context.Background(), env.db, string(created.ID))
	require.NoError(t, err)
	require.Len(t, stored.Draft.Images, 1)
}

func TestAcceptShare_RequiresAcceptedShare(t *testing.T) {
	env := setupServer(t)
	ann := env.login(t, "ann@example.com", "secret")

	created, err := ann.CreateCapsule(context.Background(), validRequest(env.bob.ID))
	require.NoError(t, err)

	s, err := env.client(t, "").Login(context.Background(), "bob@example.com", "hunter2")
	require.NoError(t, err)
	body, contentType, err := api.EncodeCreateRequest(&api.CreateRequest{
		Images: []api.ImagePart{{FileName: "b.png", MediaType: "image/png", Data: pngHeader}},
	})
	require.NoError(t, err)

	// The share is still pending, so the upload is refused.
	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/capsules/"+string(created.ID)+"/accept", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// The owner has no share to answer.
	shared, err := env.client(t, s.AccessToken).ListShared(context.Background())
	require.NoError(t, err)
	require.Len(t, shared, 1)
	err = ann.AcceptShare(context.Background(), shared[0], []api.ImagePart{{FileName: "b.png", Data: pngHeader}})
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusNotFound, se.Status)

	stored, err := db.GetCapsule(context.Background(), env.db, string(created.ID))
	require.NoError(t, err)
	require.Len(t, stored.Draft.Images, 1)
}
