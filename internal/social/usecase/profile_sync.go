package usecase

import (
	"context"
	"strings"
	"sync"

	"social-connect/internal/session"
	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	"social-connect/internal/social/domain/model"
	"social-connect/internal/social/guard"
	"social-connect/internal/social/live"
	storemodel "social-connect/internal/store/domain/model"
	"social-connect/internal/store/domain/repository"
)

// ProfileSync mirrors the signed-in identity's profile document
type ProfileSync interface {
	// Watch streams every new version of the profile
	Watch(ctx context.Context) (*live.Stream[model.Profile], error)
	// Current returns the last profile delivered by Watch
	Current() (model.Profile, bool)
	// Get reads any identity's profile once
	Get(ctx context.Context, identityID string) (*model.Profile, error)
	UpdateBio(ctx context.Context, bio string) error
	UpdateAvatar(ctx context.Context, avatarURL string) error
	UpdateDisplayName(ctx context.Context, name string) error
}

type profileSync struct {
	component

	mu      sync.RWMutex
	current *model.Profile
}

// NewProfileSync creates the profile component of sess
func NewProfileSync(sess *session.Session, deps Deps) ProfileSync {
	return &profileSync{component: newComponent("profile-sync", sess, deps)}
}

func (p *profileSync) Watch(ctx context.Context) (*live.Stream[model.Profile], error) {
	me, ctx, err := p.actor(ctx, "watch-profile")
	if err != nil {
		return nil, err
	}

	stream := live.NewStream[model.Profile](ctx)
	p.attach(stream)
	path := docpath.User(me)

	go func() {
		defer stream.Close()
		p.listen(stream.Context(), path, func(ctx context.Context) (repository.Subscription, error) {
			return p.deps.Store.SubscribeDocument(ctx, path)
		}, func(ctx context.Context, snap storemodel.Snapshot) {
			doc := snap.First()
			if doc == nil {
				p.log.WithContext(ctx).Warnf("profile %s does not exist yet", me)
				return
			}
			profile, err := model.ProfileFromDocument(doc)
			if err != nil {
				p.log.WithContext(ctx).Errorf("ignoring profile snapshot: %v", err)
				return
			}
			p.mu.Lock()
			p.current = profile
			p.mu.Unlock()
			if stream.Publish(*profile) {
				p.deps.Metrics.SnapshotPublished(p.name)
			}
		})
	}()
	return stream, nil
}

func (p *profileSync) Current() (model.Profile, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return model.Profile{}, false
	}
	return *p.current, true
}

func (p *profileSync) Get(ctx context.Context, identityID string) (*model.Profile, error) {
	if _, _, err := p.actor(ctx, "get-profile"); err != nil {
		return nil, err
	}
	if !docpath.IsValidID(identityID) {
		return nil, errors.NewValidationError("invalid identity id")
	}
	doc, err := p.read(ctx, docpath.User(identityID), "profile "+identityID)
	if err != nil {
		return nil, err
	}
	return model.ProfileFromDocument(doc)
}

func (p *profileSync) UpdateBio(ctx context.Context, bio string) error {
	return p.update(ctx, "update-bio", map[string]interface{}{"bio": strings.TrimSpace(bio)})
}

func (p *profileSync) UpdateAvatar(ctx context.Context, avatarURL string) error {
	return p.update(ctx, "update-avatar", map[string]interface{}{"avatarUrl": strings.TrimSpace(avatarURL)})
}

func (p *profileSync) UpdateDisplayName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.NewValidationError("display name must not be empty").WithCode(errors.CodeEmptyText)
	}
	return p.update(ctx, "update-display-name", map[string]interface{}{"displayName": name})
}

// update merges fields into the owner's profile document
func (p *profileSync) update(ctx context.Context, action string, fields map[string]interface{}) error {
	me, ctx, err := p.actor(ctx, action)
	if err != nil {
		return err
	}
	path := docpath.User(me)
	if err := p.check(me, guard.OpUpdate, path, fields, nil); err != nil {
		return p.fail(ctx, action, err)
	}
	if err := p.deps.Store.SetDocument(ctx, path, fields, storemodel.SetOptions{Merge: true}); err != nil {
		return p.fail(ctx, action, err)
	}
	return nil
}
