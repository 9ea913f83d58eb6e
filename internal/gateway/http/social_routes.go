package http

import (
	"context"

	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/respond"
	"social-connect/internal/social/live"

	"github.com/gofiber/fiber/v2"
)

type textRequest struct {
	Text string `json:"text"`
}

type postRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
}

type profileRequest struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatarUrl"`
}

type openRequest struct {
	TargetID string `json:"targetId"`
}

func (h *Handler) registerSocialRoutes(api fiber.Router) {
	api.Get("/profile", h.getOwnProfile)
	api.Patch("/profile", h.limitWrites, h.updateProfile)
	api.Get("/users/:id", h.getProfile)
	api.Get("/users/:id/posts", h.postsByAuthor)
	api.Get("/users/:id/counts", h.followCounts)
	api.Get("/users/:id/follow", h.isFollowing)
	api.Post("/users/:id/follow", h.limitWrites, h.toggleFollow)
	api.Get("/search", h.search)

	api.Get("/feed", h.feed)
	api.Post("/posts", h.limitWrites, h.createPost)
	api.Delete("/posts/:id", h.limitWrites, h.deletePost)
	api.Post("/posts/:id/like", h.limitWrites, h.toggleLike)
	api.Get("/posts/:id/comments", h.comments)
	api.Post("/posts/:id/comments", h.limitWrites, h.addComment)

	api.Get("/conversations", h.conversations)
	api.Post("/conversations", h.limitWrites, h.openConversation)
	api.Get("/conversations/:id/messages", h.messages)
	api.Post("/conversations/:id/messages", h.limitWrites, h.sendMessage)
}

// firstSnapshot waits for the first value of a freshly opened stream and cancels it
func firstSnapshot[T any](ctx context.Context, stream *live.Stream[T], err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	defer stream.Cancel()
	select {
	case v, ok := <-stream.Updates():
		if !ok {
			return zero, errors.NewRemoteError("subscription closed")
		}
		return v, nil
	case <-ctx.Done():
		return zero, errors.NewRemoteError("timed out waiting for snapshot").WithCause(ctx.Err())
	}
}

func (h *Handler) getOwnProfile(c *fiber.Ctx) error {
	profile, err := clientOf(c).Profile.Get(c.UserContext(), identityOf(c))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(profile)
}

func (h *Handler) getProfile(c *fiber.Ctx) error {
	profile, err := clientOf(c).Profile.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(profile)
}

func (h *Handler) updateProfile(c *fiber.Ctx) error {
	var req profileRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.BadRequest(c)
	}
	ctx := c.UserContext()
	profile := clientOf(c).Profile
	if req.DisplayName != nil {
		if err := profile.UpdateDisplayName(ctx, *req.DisplayName); err != nil {
			return respond.Error(c, err)
		}
	}
	if req.Bio != nil {
		if err := profile.UpdateBio(ctx, *req.Bio); err != nil {
			return respond.Error(c, err)
		}
	}
	if req.AvatarURL != nil {
		if err := profile.UpdateAvatar(ctx, *req.AvatarURL); err != nil {
			return respond.Error(c, err)
		}
	}
	return h.getOwnProfile(c)
}

func (h *Handler) postsByAuthor(c *fiber.Ctx) error {
	items, err := clientOf(c).Feed.PostsByAuthor(c.UserContext(), c.Params("id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(fiber.Map{"posts": items})
}

func (h *Handler) followCounts(c *fiber.Ctx) error {
	counts, err := clientOf(c).Reactions.FollowCounts(c.UserContext(), c.Params("id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(counts)
}

func (h *Handler) isFollowing(c *fiber.Ctx) error {
	following, err := clientOf(c).Reactions.IsFollowing(c.UserContext(), c.Params("id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(fiber.Map{"following": following})
}

func (h *Handler) toggleFollow(c *fiber.Ctx) error {
	following, err := clientOf(c).Reactions.ToggleFollow(c.UserContext(), c.Params("id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(fiber.Map{"following": following})
}

func (h *Handler) search(c *fiber.Ctx) error {
	profiles, err := clientOf(c).Conversations.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(fiber.Map{"results": profiles})
}

func (h *Handler) feed(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	stream, err := clientOf(c).Feed.Watch(ctx)
	items, err := firstSnapshot(ctx, stream, err)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(fiber.Map{"posts": items})
}

func (h *Handler) createPost(c *fiber.Ctx) error {
	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.BadRequest(c)
	}
	id, err := clientOf(c).Feed.CreatePost(c.UserContext(), req.Text, req.ImageURL)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *Handler) deletePost(c *fiber.Ctx) error {
	if err := clientOf(c).Feed.DeletePost(c.UserContext(), c.Params("id")); err != nil {
		return respond.Error(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) toggleLike(c *fiber.Ctx) error {
	liked, err := clientOf(c).Reactions.ToggleLike(c.UserContext(), c.Params("id"))
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(fiber.Map{"liked": liked})
}

func (h *Handler) comments(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	stream, err := clientOf(c).Comments.Watch(ctx, c.Params("id"))
	comments, err := firstSnapshot(ctx, stream, err)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

func (h *Handler) addComment(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.BadRequest(c)
	}
	id, err := clientOf(c).Comments.AddComment(c.UserContext(), c.Params("id"), req.Text)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *Handler) conversations(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	stream, err := clientOf(c).Conversations.Watch(ctx)
	entries, err := firstSnapshot(ctx, stream, err)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(fiber.Map{"conversations": entries})
}

func (h *Handler) openConversation(c *fiber.Ctx) error {
	var req openRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.BadRequest(c)
	}
	result, err := clientOf(c).Conversations.OpenOrCreate(c.UserContext(), req.TargetID)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) messages(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	stream, err := clientOf(c).Messages.Watch(ctx, c.Params("id"))
	messages, err := firstSnapshot(ctx, stream, err)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (h *Handler) sendMessage(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return respond.BadRequest(c)
	}
	id, err := clientOf(c).Messages.SendMessage(c.UserContext(), c.Params("id"), req.Text)
	if err != nil {
		return respond.Error(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}
