package main

import (
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/ecapsule/internal/api"
	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/errors"
	"github.com/hpungsan/ecapsule/internal/files"
)

// listEntry is one capsule of the list command output.
type listEntry struct {
	ID       api.ID `json:"id"`
	Title    string `json:"title"`
	Owner    string `json:"owner"`
	IsOwner  bool   `json:"is_owner"`
	Status   string `json:"status,omitempty"`
	OpensAt  string `json:"opens_at"`
	Sealed   bool   `json:"sealed"`
	DaysLeft int    `json:"days_left"`
	TimeLeft string `json:"time_left"`
}

// listCmd creates the list command.
func listCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List your capsules and accepted shares with the time left until each opens",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include pending and declined shares"},
		},
		Action: func(c *cli.Context) error {
			client, err := newClient(env.cfg, env.logger)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			listings, err := client.ListCapsules(c.Context)
			if err != nil {
				return outputError(err)
			}

			now := env.clock()
			entries := []listEntry{}
			for _, l := range listings {
				if !c.Bool("all") && !l.InCollection() {
					continue
				}
				entries = append(entries, listEntry{
					ID:       l.ID,
					Title:    l.Title,
					Owner:    l.OwnerName,
					IsOwner:  l.IsOwner,
					Status:   l.Status,
					OpensAt:  l.OpeningTime.UTC().Format(api.ISOTimeLayout),
					Sealed:   capsule.Sealed(l.OpeningTime, now),
					DaysLeft: capsule.DaysLeft(l.OpeningTime, now),
					TimeLeft: capsule.CountdownTo(l.OpeningTime, now).String(),
				})
			}
			return outputJSON(env.stdout, entries)
		},
	}
}

// sharesCmd creates the shares command.
func sharesCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "shares",
		Usage: "List capsules shared with you that wait for an answer",
		Action: func(c *cli.Context) error {
			client, err := newClient(env.cfg, env.logger)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			shared, err := client.ListShared(c.Context)
			if err != nil {
				return outputError(err)
			}
			if shared == nil {
				shared = []api.SharedCapsule{}
			}
			return outputJSON(env.stdout, shared)
		},
	}
}

// findShare looks up a pending share by id.
func findShare(c *cli.Context, client *api.Client, id string) (api.SharedCapsule, error) {
	shared, err := client.ListShared(c.Context)
	if err != nil {
		return api.SharedCapsule{}, err
	}
	for _, s := range shared {
		if string(s.ShareID) == id {
			return s, nil
		}
	}
	return api.SharedCapsule{}, errors.NewNotFound(id)
}

// acceptCmd creates the accept command.
func acceptCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "accept",
		Usage:     "Accept a shared capsule and add your own images to it",
		ArgsUsage: "SHARE_ID",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "image", Aliases: []string{"i"}, Required: true, Usage: "Image or video path (repeatable)"},
			&cli.StringSliceFlag{Name: "caption", Aliases: []string{"c"}, Usage: "Caption of the image at the same position (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return outputError(errors.NewInvalidRequest("share id is required"))
			}
			captions := c.StringSlice("caption")

			var images []api.ImagePart
			for i, path := range c.StringSlice("image") {
				blob, err := files.ReadBlob(path, env.cfg.MaxFileBytes)
				if err != nil {
					return outputError(err)
				}
				mediaType, msg := capsule.CheckFile(blob, env.cfg.MaxFileBytes)
				if msg != "" {
					return outputError(errors.NewFileRejected(blob.Name, msg))
				}
				part := api.ImagePart{FileName: blob.Name, MediaType: mediaType, Data: blob.Data}
				if i < len(captions) {
					part.Caption = captions[i]
				}
				images = append(images, part)
			}

			client, err := newClient(env.cfg, env.logger)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			share, err := findShare(c, client, id)
			if err != nil {
				return outputError(err)
			}
			if err := client.AcceptShare(c.Context, share, images); err != nil {
				return outputError(err)
			}
			return outputJSON(env.stdout, map[string]any{
				"share_id":   share.ShareID,
				"capsule_id": share.CapsuleID,
				"status":     api.StatusAccepted,
				"images":     len(images),
			})
		},
	}
}

// declineCmd creates the decline command.
func declineCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "decline",
		Usage:     "Decline a shared capsule",
		ArgsUsage: "SHARE_ID",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return outputError(errors.NewInvalidRequest("share id is required"))
			}
			client, err := newClient(env.cfg, env.logger)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			share, err := findShare(c, client, id)
			if err != nil {
				return outputError(err)
			}
			if err := client.DeclineShare(c.Context, share); err != nil {
				return outputError(err)
			}
			return outputJSON(env.stdout, map[string]any{
				"share_id":   share.ShareID,
				"capsule_id": share.CapsuleID,
				"status":     api.StatusDeclined,
			})
		},
	}
}
